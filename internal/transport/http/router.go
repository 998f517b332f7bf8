package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the REST API and the WebSocket endpoints.
func NewRouter(api *API, ws *WSHandler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/ws/worldcup", ws.ServeWorldCup)
	r.Get("/ws/tallies", ws.ServeTallies)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", api.listCategories)
		r.Get("/tallies", api.getTallies)
		r.Get("/share/{code}", api.findByShareCode)

		r.Route("/questionsets", func(r chi.Router) {
			r.Get("/", api.listQuestionSets)
			r.Post("/", api.createQuestionSet)
			r.Get("/{id}", api.getQuestionSet)
			r.Put("/{id}", api.updateQuestionSet)
			r.Delete("/{id}", api.deleteQuestionSet)
		})

		r.Route("/clients/{clientId}", func(r chi.Router) {
			r.Post("/games", api.startGame)
			r.Get("/session", api.getSession)
			r.Delete("/session", api.clearSession)
			r.Post("/choices", api.submitChoice)
			r.Get("/results", api.getResults)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}
