package dto

import "time"

type UploadChunkRequest struct {
	Fingerprint string `form:"fingerprint" validate:"required"`
	ChunkId     string `form:"chunk_id" validate:"required"`
	Index       *int   `form:"index" validate:"omitempty,min=0"`
}

type UploadChunkResponse struct {
	ChunkId       string `json:"chunk_id"`
	AlreadyExists bool   `json:"already_exists"`
}

type VerifyUploadResponse struct {
	Fingerprint    string   `json:"fingerprint"`
	UploadedChunks []string `json:"uploaded_chunks"`
}

type MergeChunksRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required"`
	Filename    string `json:"filename" validate:"required"`
	ChunkSize   int64  `json:"chunk_size" validate:"required,gt=0"`
	Collection  string `json:"collection"`
}

type IngestResponse struct {
	Collection string   `json:"collection"`
	Sources    []string `json:"sources"`
	Parents    int      `json:"parents"`
	Children   int      `json:"children"`
}

type MergeChunksResponse struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Size        int            `json:"size"`
	Ingest      IngestResponse `json:"ingest"`
}

type CollectionResponse struct {
	Name       string     `json:"name"`
	ChunkCount int64      `json:"chunk_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type CollectionDocumentResponse struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

type DescribeCollectionResponse struct {
	Name      string                        `json:"name"`
	Documents []*CollectionDocumentResponse `json:"documents"`
}

type RemoveDocumentResponse struct {
	Collection     string   `json:"collection"`
	Filename       string   `json:"filename"`
	DeletedChunks  int      `json:"deleted_chunks"`
	DeletedParents int      `json:"deleted_parents"`
	FailedParents  []string `json:"failed_parents,omitempty"`
}

type RetrievedContextResponse struct {
	DocId   string  `json:"doc_id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type RetrieveResponse struct {
	Collection string                      `json:"collection"`
	Query      string                      `json:"query"`
	Contexts   []*RetrievedContextResponse `json:"contexts"`
}
