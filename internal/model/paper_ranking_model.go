package model

import (
	"time"

	"github.com/google/uuid"
)

type PaperRanking struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Date      string    `gorm:"type:text;not null;uniqueIndex:idx_ranking_date_paper"`
	PaperKey  string    `gorm:"type:text;not null;uniqueIndex:idx_ranking_date_paper"`
	Title     string    `gorm:"type:text;not null"`
	Score     int       `gorm:"not null"`
	Reason    string    `gorm:"type:text"`
	Excerpt   string    `gorm:"type:text"`
	Position  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (PaperRanking) TableName() string {
	return "paper_rankings"
}
