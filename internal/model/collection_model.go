package model

import "time"

type Collection struct {
	Name      string    `gorm:"type:varchar(255);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Collection) TableName() string {
	return "collections"
}

// CollectionWithCount is the row shape of the collection listing query.
type CollectionWithCount struct {
	Collection
	ChunkCount int64
}

// All returns every model the service migrates.
func All() []interface{} {
	return []interface{}{&Collection{}, &ChildChunk{}}
}
