package scope

import "gorm.io/gorm"

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// InInsertionOrder orders child chunks the way they were indexed.
func InInsertionOrder(db *gorm.DB) *gorm.DB {
	return OrderByCreatedAsc(db).Order("chunk_index ASC")
}

func InCollection(collection string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("collection = ?", collection)
	}
}
