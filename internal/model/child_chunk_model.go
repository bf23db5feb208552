package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ChildChunk rows are hard deleted so a removed document is never discoverable again.
type ChildChunk struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Collection     string            `gorm:"type:varchar(255);not null;index:idx_child_chunks_collection_source,priority:1"`
	Source         string            `gorm:"type:text;not null;index:idx_child_chunks_collection_source,priority:2"`
	DocId          string            `gorm:"type:varchar(64);not null;index"`
	ContentType    string            `gorm:"type:varchar(255)"`
	Content        string            `gorm:"type:text;not null"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector"` // dimension follows the configured embedding model
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	ChunkIndex     int               `gorm:"default:0"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

func (ChildChunk) TableName() string {
	return "child_chunks"
}

// ChildChunkRef is the vector-free projection of child_chunks.
type ChildChunkRef struct {
	Id          uuid.UUID
	DocId       string
	Source      string
	ContentType string
}
