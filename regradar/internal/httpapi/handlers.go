package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// dateLayouts accepted for start_date / end_date query parameters.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDateParam(s string) (int64, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// handleListChanges serves GET /v1/changes.
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.ChangeFilter

	if v := q.Get("start_date"); v != "" {
		ms, ok := parseDateParam(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		f.Since = &ms
	}
	if v := q.Get("end_date"); v != "" {
		ms, ok := parseDateParam(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		f.Until = &ms
	}
	if v := q.Get("source_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		f.SourceID = id
	}
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		f.MinScore = &score
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		f.Offset = n
	}
	f.SortField = q.Get("sort")
	f.SortDir = q.Get("order")

	// Normalize up front so the envelope echoes the effective limit/offset.
	if err := f.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.ListChanges(r.Context(), f)
	if err != nil {
		s.logger.Error("httpapi: list changes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := s.store.CountChanges(r.Context(), f)
	if err != nil {
		s.logger.Error("httpapi: count changes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []*store.ChangeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changes":    records,
		"count":      len(records),
		"pagination": paginationEnvelope(total, f.Limit, f.Offset),
	})
}

// paginationEnvelope describes the page window. next_offset and prev_offset
// are null at the respective ends of the result set.
func paginationEnvelope(total, limit, offset int) map[string]any {
	env := map[string]any{
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"next_offset": nil,
		"prev_offset": nil,
	}
	if offset+limit < total {
		env["next_offset"] = offset + limit
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		env["prev_offset"] = prev
	}
	return env
}

// documentResponse is the GET /v1/documents/{id} payload.
type documentResponse struct {
	*store.Document
	Versions []*store.DocumentVersion `json:"versions"`
}

// handleGetDocument serves GET /v1/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("httpapi: get document", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	versions, err := s.store.ListVersions(r.Context(), id)
	if err != nil {
		s.logger.Error("httpapi: list versions", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, Versions: versions})
}

// handleGetImpact serves GET /v1/impacts/{id}.
func (s *Server) handleGetImpact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid impact id")
		return
	}
	rec, err := s.store.GetChangeRecord(r.Context(), id)
	if err != nil {
		s.logger.Error("httpapi: get impact", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "impact not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
