package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/store"
)

// Error types carried in {"error":{"type":..,"message":..}} bodies.
const (
	errNotFound        = "NOT_FOUND"
	errInvalidBody     = "INVALID_REQUEST_BODY"
	errInvalidQuery    = "INVALID_REQUEST_QUERY"
	errAuthRequired    = "AUTHENTICATION_REQUIRED"
	errServerError     = "SERVER_ERROR"
	maxRequestBodySize = 1 << 20
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v0/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	mux.HandleFunc("GET /v0/{base}/{table}", s.handleListRecords)
	mux.HandleFunc("POST /v0/{base}/{table}", s.handleCreateRecord)
	mux.HandleFunc("GET /v0/{base}/{table}/{id}", s.handleGetRecord)
	mux.HandleFunc("PATCH /v0/{base}/{table}/{id}", s.handleUpdateRecord)
	mux.HandleFunc("PUT /v0/{base}/{table}/{id}", s.handleReplaceRecord)
	mux.HandleFunc("DELETE /v0/{base}/{table}/{id}", s.handleDeleteRecord)
	return s.recoveryMiddleware(s.loggingMiddleware(AuthMiddleware(authToken, mux)))
}

type listRecordsResponse struct {
	Records []*model.Record `json:"records"`
}

type deleteRecordResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleHealth handles GET /v0/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRecords handles GET /v0/{base}/{table}.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("maxRecords"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, errInvalidQuery, "maxRecords must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.store.ListRecords(r.Context(), r.PathValue("base"), r.PathValue("table"), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if records == nil {
		records = []*model.Record{}
	}
	writeJSON(w, http.StatusOK, listRecordsResponse{Records: records})
}

// handleGetRecord handles GET /v0/{base}/{table}/{id}.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecord(r.Context(), r.PathValue("base"), r.PathValue("table"), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCreateRecord handles POST /v0/{base}/{table}.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeFields(w, r)
	if !ok {
		return
	}
	id, err := s.newID()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	rec.ID = id
	rec.CreatedTime = model.FormatCreatedTime(s.now())

	base, table := r.PathValue("base"), r.PathValue("table")
	if err := s.store.CreateRecord(r.Context(), base, table, rec); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordAdded, events.RecordAdded{
		Source: events.Source{BaseID: base, Table: table},
		Record: rec,
	})
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateRecord handles PATCH /v0/{base}/{table}/{id}. Submitted fields
// are merged into the stored ones.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeFields(w, r)
	if !ok {
		return
	}
	base, table := r.PathValue("base"), r.PathValue("table")
	rec, err := s.store.UpdateRecord(r.Context(), base, table, r.PathValue("id"), in.Fields)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordUpdated, events.RecordUpdated{
		Source: events.Source{BaseID: base, Table: table},
		Record: rec,
	})
	writeJSON(w, http.StatusOK, rec)
}

// handleReplaceRecord handles PUT /v0/{base}/{table}/{id}. Fields not
// submitted are cleared.
func (s *Server) handleReplaceRecord(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeFields(w, r)
	if !ok {
		return
	}
	in.ID = r.PathValue("id")
	in.CreatedTime = ""

	base, table := r.PathValue("base"), r.PathValue("table")
	rec, err := s.store.ReplaceRecord(r.Context(), base, table, in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordReplaced, events.RecordReplaced{
		Source: events.Source{BaseID: base, Table: table},
		Record: rec,
	})
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord handles DELETE /v0/{base}/{table}/{id}.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	base, table, id := r.PathValue("base"), r.PathValue("table"), r.PathValue("id")
	if err := s.store.DeleteRecord(r.Context(), base, table, id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordDeleted, events.RecordDeleted{
		Source:   events.Source{BaseID: base, Table: table},
		RecordID: id,
	})
	writeJSON(w, http.StatusOK, deleteRecordResponse{ID: id, Deleted: true})
}

// decodeFields reads a {"fields":{...}} body. Decoding into a model.Record
// keeps the submitted key order. On failure it writes a 422 and returns false.
func decodeFields(w http.ResponseWriter, r *http.Request) (*model.Record, bool) {
	var rec model.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&rec); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errInvalidBody, "could not parse request body: "+err.Error())
		return nil, false
	}
	if rec.Fields == nil {
		writeError(w, http.StatusUnprocessableEntity, errInvalidBody, "request body must contain a fields object")
		return nil, false
	}
	return &rec, true
}

// writeStoreError maps store errors onto HTTP responses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, errNotFound, "Could not find what you are looking for")
		return
	}
	s.logger.Error("store operation failed", "err", err)
	writeError(w, http.StatusInternalServerError, errServerError, "internal server error")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Type: errType, Message: message}})
}
