package models

// SearchResult is a single search hit.
type SearchResult struct {
	Note       *Note             `json:"note"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
	Rank       int               `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	Fuzzy     bool            `json:"fuzzy,omitempty"`
}
