package dto

type IngestPapersRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type IngestPapersResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type PaperResponse struct {
	Id          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Authors     []string `json:"authors"`
	PublishedAt string   `json:"published_at"`
	Upvotes     int      `json:"upvotes"`
}

type ListPapersResponse struct {
	Date   string          `json:"date"`
	Papers []PaperResponse `json:"papers"`
}
