package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"learntrust-backend/internal/handlers"
	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/websocket"
)

// ChainHealth reports whether the audit chain passed its last
// integrity sweep; the sweeper satisfies it.
type ChainHealth interface {
	Healthy() bool
}

func New(
	jwtAuth *middleware.JWTAuth,
	eventsHandler *handlers.EventsHandler,
	modulesHandler *handlers.ModulesHandler,
	progressHandler *handlers.ProgressHandler,
	certificatesHandler *handlers.CertificatesHandler,
	auditHandler *handlers.AuditHandler,
	wsHub *websocket.Hub,
	chainHealth ChainHealth,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Watch events arrive on every heartbeat, so this limiter is
	// generous; it only catches runaway clients.
	eventLimiter := middleware.NewRateLimiter(300, time.Minute)

	// Health check. A broken audit chain degrades the whole service:
	// load balancers should stop routing to an instance whose ledger
	// cannot be trusted.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if chainHealth != nil && !chainHealth.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","reason":"audit chain integrity failure"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Engagement Events ────
		r.Route("/events", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(eventLimiter.Middleware)
			r.Post("/watch", eventsHandler.WatchEvent)
		})

		// ──── Module Routes ────
		r.Route("/modules", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/{id}/unlock", modulesHandler.Unlock)
			r.Get("/{id}/stream", modulesHandler.Stream)
			r.Post("/{id}/progress", progressHandler.Update)
			r.Post("/{id}/quiz-attempt", progressHandler.QuizAttempt)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("instructor", "admin"))
				r.Get("/{id}/heatmap", modulesHandler.Heatmap)
			})
		})

		// ──── Progress Routes ────
		r.Route("/progress", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", progressHandler.Summary)
		})

		// ──── Course & Certificate Routes ────
		r.Route("/courses", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/{id}/complete", certificatesHandler.CompleteCourse)
		})

		r.Route("/certificates", func(r chi.Router) {
			// Verification is the one public surface: employers check
			// codes without an account.
			r.Get("/verify/{code}", certificatesHandler.Verify)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(middleware.RequireRole("admin"))
				r.Post("/{id}/revoke", certificatesHandler.Revoke)
			})
		})

		// ──── Audit Routes ────
		r.Route("/audit", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole("instructor", "admin"))
			r.Get("/verify", auditHandler.Verify)
			r.Get("/export", auditHandler.Export)
		})

		// ──── WebSocket ────
		r.Get("/ws/audit", wsHub.HandleWebSocket)
	})

	return r
}
