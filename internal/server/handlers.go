package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"adonel/internal/backend"
	"adonel/internal/commit"
	"adonel/internal/notify"
	"adonel/internal/preview"
	"adonel/internal/session"
	"adonel/pkg/models"
)

// maxUploadBytes caps the in-memory part of a multipart upload; the rest spills to disk.
const maxUploadBytes = 32 << 20

type ctxKey int

const (
	kindKey ctxKey = iota
	storeKey
)

// SessionResponse is the JSON form of an import session.
type SessionResponse struct {
	ID       string           `json:"id"`
	Kind     models.Kind      `json:"kind"`
	Busy     bool             `json:"busy"`
	Progress session.Progress `json:"progress"`
	Revision uint64           `json:"revision"`
	Records  []models.Record  `json:"records"`
	Preview  preview.View     `json:"preview"`

	// Index is set when a record was just added.
	Index        *int                 `json:"index,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error        string               `json:"error"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// CommitResponse is the answer to a confirmed import.
type CommitResponse struct {
	Outcome *commit.Outcome `json:"outcome"`
	Session SessionResponse `json:"session"`
}

type manualRecordRequest struct {
	UnitID           *int                    `json:"unitId"`
	Date             *string                 `json:"date"`
	TotalRevenue     decimal.Decimal         `json:"totalRevenue"`
	Cash             decimal.Decimal         `json:"cash"`
	Pix              decimal.Decimal         `json:"pix"`
	Card             decimal.Decimal         `json:"card"`
	Receivable       decimal.Decimal         `json:"receivable"`
	Check            decimal.Decimal         `json:"check"`
	TotalOrders      int                     `json:"totalOrders"`
	TotalItems       int                     `json:"totalItems"`
	IsOperationalDay *bool                   `json:"isOperationalDay"`
	Items            []models.ReceivableItem `json:"items"`
}

type updateFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type commitRequest struct {
	ValidateDuplicates *bool `json:"validarDuplicados"`
	AllowPartial       bool  `json:"permitirParcial"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":   "healthy",
		"service":  "adonel",
		"sessions": s.registry.Len(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalogue.Units())
}

func (s *Server) kindMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := models.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			s.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey, kind)))
	})
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := s.registry.Get(kindFrom(r), chi.URLParam(r, "id"))
		if !ok {
			s.writeError(w, http.StatusNotFound, "import session not found", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), storeKey, store)))
	})
}

func kindFrom(r *http.Request) models.Kind {
	kind, _ := r.Context().Value(kindKey).(models.Kind)
	return kind
}

func storeFrom(r *http.Request) *session.Store {
	store, _ := r.Context().Value(storeKey).(*session.Store)
	return store
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	store := s.registry.Create(kindFrom(r))
	s.writeJSON(w, http.StatusCreated, newSessionResponse(store))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newSessionResponse(storeFrom(r)))
}

// handleCloseSession cancels the import: the session is dropped and an in-flight
// parse result for it is discarded when it arrives.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.registry.Remove(kindFrom(r), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParseFiles(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		n := notify.ParseFailed("envie os arquivos como multipart/form-data")
		s.writeError(w, http.StatusBadRequest, err.Error(), &n)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["arquivos"]
	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, session.File{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	records, err := store.ParseFiles(r.Context(), files)
	if err != nil {
		n := notify.ParseFailed(commit.UserMessage(store.Kind(), err))
		s.writeError(w, statusFor(err), err.Error(), &n)
		return
	}

	resp := newSessionResponse(store)
	n := notify.ParseResult(records)
	resp.Notification = &n
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	var req manualRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	rec := models.Record{
		UnitID:           req.UnitID,
		Date:             req.Date,
		IsOperationalDay: req.IsOperationalDay,
	}
	if store.Kind() == models.KindSales {
		rec.Sales = &models.SalesBreakdown{
			TotalRevenue: req.TotalRevenue,
			Cash:         req.Cash,
			Pix:          req.Pix,
			Card:         req.Card,
			Receivable:   req.Receivable,
			Check:        req.Check,
			TotalOrders:  req.TotalOrders,
			TotalItems:   req.TotalItems,
		}
	} else {
		rec.Items = req.Items
	}

	index, err := store.AddManualRecord(rec)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	resp := newSessionResponse(store)
	n := notify.ManualAdded(store.Kind())
	resp.Index = &index
	resp.Notification = &n
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	index, ok := s.recordIndex(w, r)
	if !ok {
		return
	}

	var req updateFieldRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	field, err := session.ParseField(req.Field)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}
	if err := store.UpdateField(index, field, req.Value); err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, newSessionResponse(store))
}

func (s *Server) handleRemoveRecord(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	index, ok := s.recordIndex(w, r)
	if !ok {
		return
	}
	if err := store.RemoveRecord(index); err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, newSessionResponse(store))
}

func (s *Server) handleClearRecords(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)
	store.Clear()
	s.writeJSON(w, http.StatusOK, newSessionResponse(store))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	opts := commit.Options{AllowPartial: req.AllowPartial}
	if req.ValidateDuplicates != nil {
		opts.SkipDuplicateCheck = !*req.ValidateDuplicates
	}

	outcome, err := s.committer.Commit(r.Context(), store, opts)
	if err != nil {
		var cerr *commit.Error
		if errors.As(err, &cerr) {
			s.writeError(w, statusFor(err), err.Error(), &cerr.Notification)
			return
		}
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, CommitResponse{
		Outcome: outcome,
		Session: newSessionResponse(store),
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(store.Kind())+`.xlsx"`)
	if err := preview.WriteXLSX(w, preview.Build(store.Kind(), store.Records())); err != nil {
		s.log.Error().Err(err).Str("session_id", store.ID()).Msg("Failed to write XLSX preview")
	}
}

func (s *Server) recordIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "record index must be a number", nil)
		return 0, false
	}
	return index, true
}

func newSessionResponse(store *session.Store) SessionResponse {
	records, revision := store.Snapshot()
	return SessionResponse{
		ID:       store.ID(),
		Kind:     store.Kind(),
		Busy:     store.Busy(),
		Progress: store.Progress(),
		Revision: revision,
		Records:  records,
		Preview:  preview.Build(store.Kind(), records),
	}
}

// statusFor maps workflow errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnknownField), errors.Is(err, session.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrNoFiles):
		return http.StatusBadRequest
	case errors.Is(err, commit.ErrNothingToImport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, n *notify.Notification) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Notification: n})
}
