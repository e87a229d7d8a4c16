package specification

import "gorm.io/gorm"

// ByDate filters papers/rankings by their YYYY-MM-DD date key
type ByDate struct {
	Date string
}

func (s ByDate) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("date = ?", s.Date)
}

// ByPaperKeys filters by a set of upstream paper identifiers
type ByPaperKeys struct {
	PaperKeys []string
}

func (s ByPaperKeys) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("paper_key IN ?", s.PaperKeys)
}

// ByArtifactKey filters artifacts by their logical key
type ByArtifactKey struct {
	Key string
}

func (s ByArtifactKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("key = ?", s.Key)
}
