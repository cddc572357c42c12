package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/lula/internal/config"
	"github.com/hyperjump/lula/internal/fileid"
	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/server"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"grocery list", "-limit", "5"},
			expected: []string{"-limit", "5", "grocery list"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-fuzzy", "grocery list"},
			expected: []string{"-fuzzy", "grocery list"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"grocery list"},
			expected: []string{"grocery list"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-limit", "5"},
			expected: []string{"-limit", "5", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"milk"}, "milk"},
		{"multiple words", []string{"grocery", "list"}, "grocery list"},
		{"single quoted phrase", []string{"grocery list"}, "grocery list"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestNoteIDFromArg(t *testing.T) {
	id := fileid.NoteID("/tmp/Note.rtfd")
	if got := noteIDFromArg(id); got != id {
		t.Errorf("id passthrough = %q", got)
	}
	if got := noteIDFromArg("/tmp/Note.rtfd"); got != id {
		t.Errorf("bundle path = %q, want %q", got, id)
	}
}

func TestNoteFromBundle(t *testing.T) {
	n := noteFromBundle("/s/ABC-123.rtfd")
	if n.Name != "ABC-123" || n.RTFPath != filepath.Join("/s/ABC-123.rtfd", "TXT.rtf") {
		t.Errorf("got %+v", n)
	}
}

func TestWatchDirectories(t *testing.T) {
	cfg := &config.Config{}
	cfg.Watch.Directories = []string{"/configured"}

	got := watchDirectories(cfg, []string{"/explicit"}, zap.NewNop())
	if !reflect.DeepEqual(got, []string{"/explicit"}) {
		t.Errorf("explicit args: got %v", got)
	}
	got = watchDirectories(cfg, nil, zap.NewNop())
	if !reflect.DeepEqual(got, []string{"/configured"}) {
		t.Errorf("config: got %v", got)
	}
}

func TestSearchURL(t *testing.T) {
	raw := searchURL("http://localhost:8080", &models.SearchQuery{Query: "milk & eggs", Limit: 5, Fuzzy: true})
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/api/v1/search" {
		t.Errorf("path = %s", u.Path)
	}
	q := u.Query()
	if q.Get("q") != "milk & eggs" || q.Get("limit") != "5" || q.Get("fuzzy") != "true" {
		t.Errorf("query = %v", q)
	}
}

func newTestAPI(t *testing.T) (*httptest.Server, *Components) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "manifest.db")
	cfg.Storage.IndexPath = filepath.Join(dir, "index")
	cfg.Recovery.OutputDir = filepath.Join(dir, "out")

	c, err := initializeComponents(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	ctx := context.Background()
	src := "/Volumes/Backup/Users/ann/Library/Stickies/Groceries.rtfd"
	note := &models.Note{
		ID:         fileid.NoteID(src),
		Name:       "Groceries",
		Title:      "Groceries",
		SourcePath: src,
		Text:       "Groceries\nmilk and eggs",
		Status:     models.NoteRecovered,
	}
	if err := c.Storage.UpsertNote(ctx, note); err != nil {
		t.Fatal(err)
	}
	if err := c.Index.Index(ctx, note.ID, &keyword.Document{Name: note.Title, Text: note.Text}); err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(c.Storage, c.Index, cfg, zap.NewNop(), nil, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, c
}

func TestSearchViaHTTP(t *testing.T) {
	ts, _ := newTestAPI(t)

	resp, err := searchViaHTTP(ts.URL, &models.SearchQuery{Query: "milk", Limit: 10})
	if err != nil {
		t.Fatalf("searchViaHTTP: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].Note.Name != "Groceries" {
		t.Errorf("got %+v", resp)
	}

	if _, err := searchViaHTTP(ts.URL, &models.SearchQuery{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestSearchDirect(t *testing.T) {
	_, c := newTestAPI(t)
	resp, err := searchDirect(context.Background(), c, &models.SearchQuery{Query: "eggs", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Rank != 1 || resp.Results[0].Note.Text != "" {
		t.Errorf("got %+v", resp.Results)
	}
}

func TestStatusViaHTTP(t *testing.T) {
	ts, _ := newTestAPI(t)
	st, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatalf("statusViaHTTP: %v", err)
	}
	if st.Notes != 1 || st.IndexedNotes != 1 {
		t.Errorf("got %+v", st)
	}
}

func TestDecodeResponse_error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := decodeResponse(resp, nil); err == nil {
		t.Error("expected error for 500 response")
	}
}
