package dto

type RankingIndexEntry struct {
	Id     string `json:"id"`
	Title  string `json:"title"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type GetRankingIndexResponse struct {
	Date    string              `json:"date"`
	Entries []RankingIndexEntry `json:"entries"`
}

type GetRankingDetailsRequest struct {
	Ids []string `json:"ids" validate:"required,min=1,dive,required"`
}

type RankingDetailEntry struct {
	Id      string `json:"id"`
	Title   string `json:"title"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
	Excerpt string `json:"excerpt"`
}

type GetRankingDetailsResponse struct {
	Date    string               `json:"date"`
	Entries []RankingDetailEntry `json:"entries"`
}

type RankedDatesResponse struct {
	Dates []string `json:"dates"`
}
