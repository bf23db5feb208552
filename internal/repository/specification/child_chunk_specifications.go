package specification

import "gorm.io/gorm"

type ByCollection struct {
	Collection string
}

func (s ByCollection) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("collection = ?", s.Collection)
}

type ByDocIDs struct {
	DocIDs []string
}

func (s ByDocIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id IN ?", s.DocIDs)
}

// Columns restricts the selected columns, e.g. to skip embedding_value.
type Columns struct {
	Names []string
}

func (s Columns) Apply(db *gorm.DB) *gorm.DB {
	return db.Select(s.Names)
}
