package entity

import "time"

// Paper is daily-paper metadata for one date. PaperKey is the upstream
// (arXiv) identifier; the same paper may appear on multiple dates.
type Paper struct {
	PaperKey    string
	Date        string // YYYY-MM-DD
	Title       string
	Summary     string
	Authors     []string
	PublishedAt string
	Upvotes     int
	CreatedAt   time.Time
}
