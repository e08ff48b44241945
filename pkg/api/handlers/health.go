package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheckTimeout caps each backend probe so a hung dependency cannot
// stall the readiness endpoint.
const HealthCheckTimeout = 5 * time.Second

// Pinger reports whether a backend is reachable. *store.GORMStore and
// *objectstore.Client implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerPinger is the broker's context-free reachability probe.
// *broker.Broker implements it.
type BrokerPinger interface {
	Ping() error
}

// HealthHandler serves the liveness and readiness probes.
//
// Readiness gates on the state store only: without it no request can be
// served. The object store and broker are reported for visibility but do
// not flip readiness, since uploads degrade to errors the client can retry
// while the rest of the API keeps working.
type HealthHandler struct {
	store     Pinger
	objects   Pinger
	broker    BrokerPinger
	startTime time.Time
}

// NewHealthHandler creates a health handler. objects and broker may be nil;
// their probes are then omitted from the readiness body.
func NewHealthHandler(store Pinger, objects Pinger, broker BrokerPinger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		objects:   objects,
		broker:    broker,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSONOK(w, map[string]any{
		"status":     "healthy",
		"service":    "filemill",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
	})
}

// Readiness handles GET /health/ready - readiness probe.
// Returns 200 when the state store answers, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	deps := map[string]string{}

	storeStatus := "ok"
	storeErr := h.store.Ping(ctx)
	if storeErr != nil {
		storeStatus = "unreachable"
	}
	deps["database"] = storeStatus

	if h.objects != nil {
		if err := h.objects.Ping(ctx); err != nil {
			deps["objectstore"] = "unreachable"
		} else {
			deps["objectstore"] = "ok"
		}
	}
	if h.broker != nil {
		if err := h.broker.Ping(); err != nil {
			deps["broker"] = "unreachable"
		} else {
			deps["broker"] = "ok"
		}
	}

	if storeErr != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "not ready",
			"dependencies": deps,
		})
		return
	}

	WriteJSONOK(w, map[string]any{
		"status":       "ready",
		"dependencies": deps,
	})
}
