package entity

import (
	"time"

	"github.com/google/uuid"
)

// PaperRanking is one persisted detail-tier entry: the full score record
// for one paper in one date's ranking run. Position preserves the final
// ranking order so the index tier can be rebuilt after a restart.
type PaperRanking struct {
	Id        uuid.UUID
	Date      string
	PaperKey  string
	Title     string
	Score     int
	Reason    string
	Excerpt   string
	Position  int
	CreatedAt time.Time
}
