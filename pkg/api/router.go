// Package api provides the FileMill REST server: upload intake, file and
// job state queries, downloads, and authentication.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/api/auth"
	"github.com/filemill/filemill/pkg/api/handlers"
	apiMiddleware "github.com/filemill/filemill/pkg/api/middleware"
	"github.com/filemill/filemill/pkg/metrics"
	"github.com/filemill/filemill/pkg/store"
)

// Deps bundles the backing services the API serves from. Objects and
// Submitter back the file routes; Broker is only probed for readiness and
// may be nil.
type Deps struct {
	Store     *store.GORMStore
	Objects   handlers.ObjectStore
	Submitter handlers.Submitter
	Broker    handlers.BrokerPinger

	// MaxUploadSize caps an upload request body in bytes. Zero disables
	// the cap.
	MaxUploadSize int64
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus exposition
//   - POST /api/v1/auth/register - Account creation
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current user info
//   - POST /api/v1/files/upload - Multipart upload with pipeline actions
//   - GET /api/v1/files - Owner's uploads
//   - GET /api/v1/files/{id} - File detail with jobs and outputs
//   - GET /api/v1/files/{id}/jobs - File's jobs
//   - GET /api/v1/files/{id}/download - Streamed blob
//   - DELETE /api/v1/files/{id} - Cascading delete
//   - GET /api/v1/jobs - Owner's jobs
//   - GET /api/v1/jobs/{id} - Single job
func NewRouter(deps Deps, tokens *auth.Service) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters. No router-level timeout: the
	// download routes stream bodies of arbitrary size.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(deps.Store, pingerOrNil(deps.Objects), deps.Broker)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Prometheus exposition - unauthenticated, like the probes
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(deps.Store, tokens)
	filesHandler := handlers.NewFilesHandler(deps.Store, deps.Objects, deps.Submitter, deps.MaxUploadSize)
	jobsHandler := handlers.NewJobsHandler(deps.Store)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(tokens))
				r.Get("/me", authHandler.Me)
			})
		})

		// File and job routes - bearer token resolves the owner
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(tokens))

			r.Route("/files", func(r chi.Router) {
				r.Post("/upload", filesHandler.Upload)
				r.Get("/", filesHandler.List)
				r.Get("/{id}", filesHandler.Get)
				r.Get("/{id}/jobs", filesHandler.Jobs)
				r.Get("/{id}/download", filesHandler.Download)
				r.Delete("/{id}", filesHandler.Delete)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobsHandler.List)
				r.Get("/{id}", jobsHandler.Get)
			})
		})
	})

	return r
}

// pingerOrNil narrows the object store dependency to its probe, keeping a
// typed nil out of the health handler's interface field.
func pingerOrNil(objects handlers.ObjectStore) handlers.Pinger {
	if p, ok := objects.(handlers.Pinger); ok {
		return p
	}
	return nil
}

// isQuietPath returns true for endpoints polled by orchestration: health
// probes and the metrics scrape.
func isQuietPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger logs one line per request and seeds the logging context,
// so every line a handler emits while serving the request carries the
// request ID and client IP. Probes and the metrics scrape log at DEBUG to
// keep orchestration noise down.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := logger.NewRequestContext(middleware.GetReqID(r.Context()), r.RemoteAddr)
		ctx := logger.WithContext(r.Context(), lc)
		r = r.WithContext(ctx)

		logger.DebugCtx(ctx, "API request started",
			"method", r.Method,
			"path", r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(lc.DurationMs()),
		}

		if isQuietPath(r.URL.Path) {
			logger.DebugCtx(ctx, "API request completed", logArgs...)
		} else {
			logger.InfoCtx(ctx, "API request completed", logArgs...)
		}
	})
}
