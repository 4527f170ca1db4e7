package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/internal/dispatch"
	"github.com/DoyleJ11/arcade-sessions/internal/hub"
	"github.com/DoyleJ11/arcade-sessions/internal/ws"
)

func SetupRoutes(d *dispatch.Dispatcher, h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))
			r.Post("/spins", StartSpin(d))
			r.Post("/words", StartWord(d))
			r.Post("/challenges", Challenge(d))
			r.Get("/sessions/{id}", GetSession(d))
			r.Post("/sessions/{id}/actions", Act(d))
			r.Get("/balances/{owner}", GetBalance(d))
		})
		// Long-lived; no request timeout.
		r.Get("/sessions/{id}/stream", ws.Handler(d, h, log))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
