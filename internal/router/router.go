package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"libu-backend/internal/handlers"
	"libu-backend/internal/logger"
	"libu-backend/internal/middleware"
	"libu-backend/internal/websocket"
)

// New builds the HTTP surface. ctx bounds the lifetime of the rate limiters' cleanup loops.
func New(
	ctx context.Context,
	log *logger.Logger,
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	moduleHandler *handlers.ModuleHandler,
	libraryHandler *handlers.LibraryHandler,
	extractHandler *handlers.ExtractHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	analyzeRatePerMin int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Guest rate limiter (10 req/min per IP)
	guestLimiter := middleware.NewRateLimiter(ctx, 10, time.Minute)
	// Analysis rate limiter (per learner)
	analyzeLimiter := middleware.NewRateLimiter(ctx, analyzeRatePerMin, time.Minute)

	// Health check
	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(guestLimiter.Middleware)
			r.Post("/guest", authHandler.Guest)
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			// ──── Session Routes ────
			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Reset)
				r.Put("/content", sessionHandler.SetContent)
				r.Post("/records", sessionHandler.AddRecord)
				r.Delete("/records", sessionHandler.ClearRecords)
			})

			// ──── Module Routes ────
			r.Route("/modules", func(r chi.Router) {
				r.Use(analyzeLimiter.Middleware)
				r.Post("/{module}/analyze", moduleHandler.Analyze)
			})

			r.Get("/report", sessionHandler.Report)

			// ──── Library Routes ────
			r.Route("/library", func(r chi.Router) {
				r.Get("/", libraryHandler.List)
				r.Post("/bulk-delete", libraryHandler.BulkDelete)
				r.Get("/{id}", libraryHandler.Get)
				r.Delete("/{id}", libraryHandler.Delete)
			})

			// ──── Content Routes ────
			r.Post("/content/extract", extractHandler.Extract)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
