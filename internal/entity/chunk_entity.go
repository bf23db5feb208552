package entity

import (
	"time"

	"github.com/google/uuid"
)

// ParentChunk is stored verbatim in the Parent Store under Collection:DocId.
type ParentChunk struct {
	DocId     string
	Content   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// ChildChunk is an embedded span stored in the Vector Index.
// DocId is a lookup key into the Parent Store, it may or may not resolve.
type ChildChunk struct {
	Id             uuid.UUID
	Collection     string
	DocId          string
	Source         string
	ContentType    string
	Content        string
	EmbeddingValue []float32
	Metadata       map[string]interface{}
	ChunkIndex     int
	CreatedAt      time.Time
}

// ChildChunkRef is the projection used when scanning a collection without loading vectors.
type ChildChunkRef struct {
	Id          uuid.UUID
	DocId       string
	Source      string
	ContentType string
}

// RetrievedParent is one enclosing parent chunk returned for a query.
type RetrievedParent struct {
	DocId    string
	Source   string
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// IndexResult summarizes one index call.
type IndexResult struct {
	Collection string
	Parents    int
	Children   int
	Sources    []string
}
