package entity

import "time"

type Collection struct {
	Name       string
	ChunkCount int64
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// CollectionDocument is a distinct (source, type) pair inside a collection.
type CollectionDocument struct {
	Filename string
	Type     string
}

// RemovalResult reports what a document removal touched in both stores.
type RemovalResult struct {
	Collection     string
	Filename       string
	DeletedChunks  int
	DeletedParents int
	FailedParents  []string
}
