package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

// Healthz is the unauthenticated liveness probe.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status":    "ok",
		"providers": len(a.Engine.Registry().GetAll()),
		"timestamp": time.Now().UTC(),
	}
	if a.DB != nil {
		if err := a.DB.Ping(ctx); err != nil {
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Ping(ctx); err != nil {
			status["queue"] = "unreachable"
		} else {
			status["queue"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// SystemStatus reports the engine's view of the world for the dashboard.
func (a *API) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"config":    a.Engine.Config(),
		"providers": a.providerHealth(),
	}
	if cache := a.Engine.Cache(); cache != nil {
		status["cache"] = cache.Stats()
	}
	if a.Queue != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if depth, err := a.Queue.Depth(ctx); err == nil {
			status["queue_depth"] = depth
		}
	}
	if a.Hub != nil {
		status["realtime_clients"] = a.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) providerHealth() map[string]contract.ProviderHealth {
	health := map[string]contract.ProviderHealth{}
	for _, p := range a.Engine.Registry().GetAll() {
		health[p.Name()] = p.Health()
	}
	return health
}

// HealthEvent renders the same provider.health payload the monitor
// broadcasts, used to seed a realtime client that just connected.
func (a *API) HealthEvent() []byte {
	payload, err := json.Marshal(map[string]any{
		"type":      "provider.health",
		"providers": a.providerHealth(),
	})
	if err != nil {
		return nil
	}
	return payload
}
