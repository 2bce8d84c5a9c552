package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/qrgen/store"
)

// Server holds the dependencies for all HTTP handlers.
type Server struct {
	Sessions *Sessions
	History  *store.HistoryStore // nil when the generation log is disabled
	Log      *slog.Logger
	Version  string
}

// NewRouter returns a fully configured chi router with all routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Log))

	// Page
	r.Get("/", s.handlePage)
	r.Get("/state", s.handleState)
	r.Get("/download.png", s.handleDownloadFile)

	// UI events
	r.Route("/events", func(r chi.Router) {
		r.Post("/text", s.handleTextEdited)
		r.Post("/key", s.handleKeyPress)
		r.Post("/generate", s.handleGenerate)
		r.Post("/size", s.handleSizeChange)
		r.Post("/download", s.handleDownload)
	})

	// Operations, readable from other origins such as dashboards.
	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Get("/healthz", s.handleHealth)
		r.Get("/history", s.handleHistory)
		r.Options("/healthz", preflight)
		r.Options("/history", preflight)
	})

	return r
}

// --- helpers ----------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// --- middleware --------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}
