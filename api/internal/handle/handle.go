package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/service"
	"cbc-anemia/api/internal/store"
)

// ResultStore is the history repository; nil disables /results.
type ResultStore interface {
	Insert(ctx context.Context, row store.ResultRow) error
	Get(ctx context.Context, id string) (*store.ResultRow, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]store.ResultRow, error)
	Delete(ctx context.Context, id string) error
}

type Handle struct {
	svc     *service.Service
	results ResultStore
	log     logger.Logger
}

func New(svc *service.Service, results ResultStore) *Handle {
	return &Handle{svc: svc, results: results, log: logger.Default}
}

// WithLogger replaces the logger.
func (h *Handle) WithLogger(l logger.Logger) *Handle {
	h.log = l
	return h
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceError: input errors are the client's, everything else is ours.
func (h *Handle) writeServiceError(w http.ResponseWriter, err error) {
	var ie *service.InputError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Server error: "+err.Error())
	default:
		h.log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error: "+err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func (h *Handle) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ocr_engine":  h.svc.OCREngine(),
		"llm_engines": h.svc.LLMEngines(),
		"storage":     h.results != nil,
	})
}
