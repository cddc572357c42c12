package models

import "fmt"

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SearchQuery is a keyword search over recovered notes.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// Fuzzy enables typo-tolerant matching.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Validate ensures the query is not empty and clamps Limit to 1..MaxSearchLimit,
// using DefaultSearchLimit when unset.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	return nil
}
