package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const (
	nameBoost = 3.0
	// fuzziness is the maximum edit distance for typo-tolerant queries.
	fuzziness = 2
)

// searchFields are queried in order; name matches are boosted because Stickies
// users rarely rename notes, so a hit there is deliberate.
var searchFields = []string{"name", "text", "attachments"}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reopened so recovered notes stay searchable across runs.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so short
	// note words match exactly.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("attachments", textField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keywordanalyzer.Name
	sourceField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source", sourceField)

	im.AddDocumentMapping("note", docMapping)
	im.DefaultType = "note"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces the note with id.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *Document) error {
	if err := b.index.Index(id, doc); err != nil {
		return fmt.Errorf("index note %s: %w", id, err)
	}
	return nil
}

// Search returns up to limit notes matching query, best first. With fuzzy set,
// each query term also matches terms within a small edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, fuzzy bool) ([]*Result, error) {
	q := buildQuery(query, fuzzy)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("text")

	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		r := &Result{ID: hit.ID, Score: hit.Score}
		for field, fragments := range hit.Fragments {
			if len(fragments) == 0 {
				continue
			}
			if r.Highlights == nil {
				r.Highlights = make(map[string]string)
			}
			r.Highlights[field] = fragments[0]
		}
		out[i] = r
	}
	return out, nil
}

// buildQuery ORs a per-field query together, boosting the name field.
func buildQuery(query string, fuzzy bool) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(searchFields))
	for _, field := range searchFields {
		var q blevequery.Query
		if fuzzy {
			q = buildFuzzyQuery(query, field)
		} else {
			mq := bleve.NewMatchQuery(query)
			mq.SetField(field)
			q = mq
		}
		if field == "name" {
			if bq, ok := q.(blevequery.BoostableQuery); ok {
				bq.SetBoost(nameBoost)
			}
		}
		queries = append(queries, q)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func buildFuzzyQuery(query, field string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a note from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of notes in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
