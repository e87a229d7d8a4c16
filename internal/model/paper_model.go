package model

import (
	"time"

	"gorm.io/datatypes"
)

type Paper struct {
	PaperKey    string         `gorm:"type:text;primaryKey"`
	Date        string         `gorm:"type:text;primaryKey;index"` // YYYY-MM-DD
	Title       string         `gorm:"type:text;not null"`
	Summary     string         `gorm:"type:text"`
	Authors     datatypes.JSON `gorm:"type:jsonb"`
	PublishedAt string         `gorm:"type:text"`
	Upvotes     int            `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (Paper) TableName() string {
	return "papers"
}
