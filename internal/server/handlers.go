package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/lula/internal/config"
	"github.com/hyperjump/lula/internal/fileid"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/rtf"
	"github.com/hyperjump/lula/internal/storage"
	"go.uber.org/zap"
)

const defaultListLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset := intParam(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	limit := intParam(q.Get("limit"), defaultListLimit)
	if limit <= 0 || limit > models.MaxSearchLimit {
		limit = defaultListLimit
	}
	status := models.NoteStatus(q.Get("status"))
	switch status {
	case "", models.NoteRecovered, models.NoteFailed:
	default:
		s.respondError(w, http.StatusBadRequest, "status must be recovered or failed")
		return
	}

	notes, err := s.storage.ListNotes(r.Context(), status, offset, limit)
	if err != nil {
		s.logger.Error("list notes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountNotes(r.Context(), status)
	if err != nil {
		s.logger.Error("count notes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notes":  notes,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// lookupNote writes the error response itself and returns nil when the note
// cannot be served.
func (s *Server) lookupNote(w http.ResponseWriter, r *http.Request) *models.Note {
	id := chi.URLParam(r, "id")
	if !fileid.Valid(id) {
		s.respondError(w, http.StatusBadRequest, "invalid note id")
		return nil
	}
	note, err := s.storage.GetNote(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "note not found")
		return nil
	}
	if err != nil {
		s.logger.Error("get note failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return note
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	if note := s.lookupNote(w, r); note != nil {
		s.respondJSON(w, http.StatusOK, note)
	}
}

func (s *Server) handleGetNoteText(w http.ResponseWriter, r *http.Request) {
	note := s.lookupNote(w, r)
	if note == nil {
		return
	}
	if note.Status != models.NoteRecovered {
		s.respondError(w, http.StatusNotFound, "note was not recovered")
		return
	}
	s.respondText(w, http.StatusOK, note.Text)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{
		Query: q.Get("q"),
		Limit: intParam(q.Get("limit"), 0),
		Fuzzy: boolParam(q.Get("fuzzy")),
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))

	start := time.Now()
	hits, err := s.index.Search(r.Context(), query.Query, query.Limit, query.Fuzzy)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(hits)),
		Query:   query.Query,
		Fuzzy:   query.Fuzzy,
	}
	for _, hit := range hits {
		note, err := s.storage.GetNote(r.Context(), hit.ID)
		if err != nil {
			// Index and manifest drift when a note is forgotten mid-search.
			s.logger.Debug("search hit without manifest entry", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		note.Text = ""
		resp.Results = append(resp.Results, &models.SearchResult{
			Note:       note,
			Score:      hit.Score,
			Highlights: hit.Highlights,
			Rank:       len(resp.Results) + 1,
		})
	}
	resp.Total = len(resp.Results)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := BuildStatus(r.Context(), s.storage, s.index)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.cfg != nil {
		diskBytes, err := storage.DiskUsageBytes(
			s.cfg.Storage.DatabasePath,
			s.cfg.Storage.IndexPath,
			s.cfg.Recovery.OutputDir,
		)
		if err != nil {
			s.logger.Debug("disk usage unavailable", zap.Error(err))
		} else {
			status.DiskUsageBytes = &diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, status)
}

// handleConvert converts the RTF request body. The response is plain text
// unless ?format=json asks for the text with its conversion statistics.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	res, err := rtf.ConvertReader(http.MaxBytesReader(w, r.Body, maxConvertBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	if r.URL.Query().Get("format") == "json" {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"text":      res.Text,
			"runes":     res.Runes,
			"malformed": res.Stats.Malformed(),
			"stats":     res.Stats,
		})
		return
	}
	s.respondText(w, http.StatusOK, res.Text)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.cfg == nil {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func intParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
