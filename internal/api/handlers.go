package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/locdb/locdb/internal/entries"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

// GetResource returns one stored resource.
func (s *Server) GetResource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.deps.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res == nil {
		writeJSONError(w, fmt.Sprintf("No resource found with id %s.", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteResource removes a resource and its embedded entries.
func (s *Server) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.deps.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, errorBody{Message: "Delete succeeded"})
}

// ListResources lists resources filtered by type, status and a full-text query.
func (s *Server) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ListFilter{Query: q.Get("query")}
	if v := q.Get("type"); v != "" {
		t, err := resource.ParseType(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.Type = t
	}
	if v := q.Get("status"); v != "" {
		st, err := resource.ParseStatus(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.Status = st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	out, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []resource.Resource{}
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveResource adds a resource from an identifier, fetching its metadata
// from the external catalogues.
func (s *Server) SaveResource(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intake == nil {
		writeJSONError(w, "Adding resources is not configured.", http.StatusServiceUnavailable)
		return
	}
	var req intake.Request
	if err := decode(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.deps.Intake.Save(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Hierarchy)
}

// ExternalSuggestions ranks catalogue candidates for a query string.
func (s *Server) ExternalSuggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	k := s.deps.DefaultK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, "k must be an integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	out, err := s.deps.Ranker.External(r.Context(), query, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type internalRequest struct {
	Title string `json:"title"`
}

// InternalSuggestions returns stored entries and resources matching a title.
func (s *Server) InternalSuggestions(w http.ResponseWriter, r *http.Request) {
	var req internalRequest
	if err := decode(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := s.deps.Ranker.Internal(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CachedSuggestions returns the precalculated suggestions of an entry.
func (s *Server) CachedSuggestions(w http.ResponseWriter, r *http.Request) {
	cache, ok := s.deps.Store.(storage.SuggestionCache)
	if !ok {
		writeJSONError(w, "Suggestion cache is not available.", http.StatusServiceUnavailable)
		return
	}
	out, err := cache.LoadSuggestions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []resource.Scored{}
	}
	writeJSON(w, http.StatusOK, out)
}

// ToDo lists entries awaiting review, optionally for one scan.
func (s *Server) ToDo(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Entries.ToDo(r.Context(), r.URL.Query().Get("scanId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetEntry returns one embedded entry.
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Entries.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateEntry applies a partial update to an entry.
func (s *Server) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var p entries.Patch
	if err := decode(r, &p); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.deps.Entries.Update(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type correctionRequest struct {
	resource.Entry
	BibliographicEntryID string `json:"bibliographicEntryId,omitempty"`
}

// CorrectEntry adds a corrected entry to a scan, retiring the entry it
// replaces.
func (s *Server) CorrectEntry(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decode(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.deps.Entries.Correct(r.Context(), mux.Vars(r)["scanId"], req.BibliographicEntryID, req.Entry)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Curate stores a [child, parent?] hierarchy without duplicating known resources.
func (s *Server) Curate(w http.ResponseWriter, r *http.Request) {
	var h resource.Hierarchy
	if err := decode(r, &h); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := s.deps.Curator.Curate(r.Context(), h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type health struct {
	Status    string `json:"status"`
	Resources int    `json:"resources"`
}

// Health checks that the store answers.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Store.Count(r.Context())
	if err != nil {
		s.log.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, health{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, health{Status: "ok", Resources: n})
}
