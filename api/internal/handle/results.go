package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/store"
)

type SaveResultRequest struct {
	UserID          string             `json:"user_id"`
	Classification  string             `json:"classification"`
	ConfidenceScore string             `json:"confidence_score"`
	Explanation     string             `json:"explanation"`
	HealthRisk      string             `json:"healthrisk"`
	Values          map[string]float64 `json:"values"`
}

func (h *Handle) storageReady(w http.ResponseWriter) bool {
	if h.results == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return false
	}
	return true
}

func (h *Handle) SaveResult(w http.ResponseWriter, r *http.Request) {
	if !h.storageReady(w) {
		return
	}
	var req SaveResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Classification) == "" {
		writeError(w, http.StatusBadRequest, "classification is required")
		return
	}
	vals, unknown := cbc.ValueMapFromNames(req.Values)
	if len(unknown) > 0 {
		writeError(w, http.StatusBadRequest, "unknown values: "+strings.Join(unknown, ", "))
		return
	}
	row := store.ResultRow{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Classification: req.Classification,
		Confidence:     req.ConfidenceScore,
		Explanation:    req.Explanation,
		HealthRisk:     req.HealthRisk,
		Values:         vals,
	}
	if err := h.results.Insert(r.Context(), row); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": row.ID})
}

func (h *Handle) ListResults(w http.ResponseWriter, r *http.Request) {
	if !h.storageReady(w) {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.results.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rows})
}

func (h *Handle) GetResult(w http.ResponseWriter, r *http.Request) {
	if !h.storageReady(w) {
		return
	}
	row, err := h.results.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handle) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if !h.storageReady(w) {
		return
	}
	err := h.results.Delete(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
