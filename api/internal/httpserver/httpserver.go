package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"cbc-anemia/api/internal/handle"
	"cbc-anemia/api/internal/logger"
)

type Options struct {
	// CORSOrigins: "*" or a comma separated list.
	CORSOrigins string
	// MaxBodyBytes caps every request body.
	MaxBodyBytes int64
}

// NewRouter registers the API routes behind the panic boundary, body limit
// and CORS.
func NewRouter(h *handle.Handle, o Options) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/predict_anemia", h.PredictAnemia).Methods(http.MethodPost)
	r.HandleFunc("/test_ocr", h.TestOCR).Methods(http.MethodPost)
	r.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/classify", h.Classify).Methods(http.MethodPost)
	r.HandleFunc("/results", h.SaveResult).Methods(http.MethodPost)
	r.HandleFunc("/results", h.ListResults).Methods(http.MethodGet)
	r.HandleFunc("/results/{id}", h.GetResult).Methods(http.MethodGet)
	r.HandleFunc("/results/{id}", h.DeleteResult).Methods(http.MethodDelete)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	r.Use(recoverMiddleware, bodyLimit(o.MaxBodyBytes))

	c := cors.New(cors.Options{
		AllowedOrigins: origins(o.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Timeout"},
	})
	return c.Handler(r)
}

func origins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// recoverMiddleware: одна упавшая обработка не роняет процесс.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, p)
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("Server error: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bodyLimit(n int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// StartHTTP blocks serving h on addr.
func StartHTTP(addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	logger.Infof("listening on %s", addr)
	return srv.ListenAndServe()
}
