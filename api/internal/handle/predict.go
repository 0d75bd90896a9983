package handle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"cbc-anemia/api/internal/service"
)

type PredictRequest struct {
	Image   string `json:"image"`
	Mode    string `json:"mode"`
	LLMName string `json:"llm_name"`
	UserID  string `json:"user_id"`
}

// requestContext: X-Request-Timeout (seconds) or ?timeoutSec, default 180s.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := 180 * time.Second
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

func (h *Handle) PredictAnemia(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	mode, err := service.ParseMode(req.Mode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	out, err := h.svc.Predict(ctx, service.Request{
		Image:   req.Image,
		Mode:    mode,
		LLMName: req.LLMName,
		UserID:  req.UserID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) TestOCR(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	out, err := h.svc.TestOCR(ctx, service.Request{Image: req.Image})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Upload takes a multipart "file" and runs the rule-based flow.
func (h *Handle) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.svc.MaxBytes()); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, service.ErrImageTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "bad multipart form: "+err.Error())
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.svc.MaxBytes()+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	out, err := h.svc.Predict(ctx, service.Request{
		ImageBytes: data,
		Mode:       service.ModeRules,
		UserID:     r.FormValue("user_id"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type ClassifyRequest struct {
	Values map[string]float64 `json:"values"`
}

func (h *Handle) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	d, unknown := h.svc.ClassifyValues(req.Values)
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnosis":        d,
		"unknown_values":   unknown,
		"is_anemia":        d.IsAnemia(),
		"values_evaluated": len(d.ValuesUsed),
	})
}
