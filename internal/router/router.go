package router

import (
	"net/http"
	"strconv"
	"strings"

	"sealevel/backend/internal/auth"
	"sealevel/backend/internal/handlers"
	"sealevel/backend/internal/middleware"
	"sealevel/backend/internal/realtime"
)

type Router struct {
	api     *handlers.API
	auth    *auth.Service
	limiter *middleware.RateLimiter
	origin  string
	hub     *realtime.Hub
}

func New(api *handlers.API, authService *auth.Service, limiter *middleware.RateLimiter, origin string, hub *realtime.Hub) *Router {
	return &Router{api: api, auth: authService, limiter: limiter, origin: origin, hub: hub}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if middleware.HandleCORS(w, r, rt.origin) {
		return
	}
	middleware.SecurityHeaders(w, rt.origin)

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	if requiresAuth(path) {
		user, err := middleware.Authenticate(r, rt.auth)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("{\"error\":\"unauthorized\"}"))
			return
		}
		if rt.limiter != nil {
			key := "user:" + strconv.FormatInt(user.ID, 10)
			if !rt.limiter.Allow(key) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("{\"error\":\"rate limit exceeded\"}"))
				return
			}
		}
		if err := middleware.ValidateCSRF(r, user); err != nil {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("{\"error\":\"invalid csrf token\"}"))
			return
		}
		r = r.WithContext(auth.WithUser(r.Context(), user))
	} else if rt.limiter != nil {
		key := middleware.ClientKey(r)
		if !rt.limiter.Allow(key) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("{\"error\":\"rate limit exceeded\"}"))
			return
		}
	}

	switch {
	case path == "/healthz":
		if r.Method == http.MethodGet {
			rt.api.Healthz(w, r)
			return
		}
	case path == "/api/v1/status":
		if r.Method == http.MethodGet {
			rt.api.SystemStatus(w, r)
			return
		}
	case path == "/api/v1/ws":
		if r.Method == http.MethodGet && rt.hub != nil {
			user, err := middleware.Authenticate(r, rt.auth)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("{\"error\":\"unauthorized\"}"))
				return
			}
			realtime.ServeWS(w, r, rt.hub, user.ID, rt.api.HealthEvent())
			return
		}
	case path == "/api/v1/consensus":
		if r.Method == http.MethodPost {
			rt.api.ExecuteConsensus(w, r)
			return
		}
	case path == "/api/v1/consensus/async":
		if r.Method == http.MethodPost {
			rt.api.EnqueueConsensus(w, r)
			return
		}
	case strings.HasPrefix(path, "/api/v1/consensus/jobs/"):
		if r.Method == http.MethodGet {
			if id := strings.TrimPrefix(path, "/api/v1/consensus/jobs/"); id != "" && !strings.Contains(id, "/") {
				rt.api.GetConsensusJob(w, r, id)
				return
			}
		}
	case path == "/api/v1/providers":
		switch r.Method {
		case http.MethodGet:
			rt.api.ListProviders(w, r)
			return
		case http.MethodPost:
			rt.api.CreateProvider(w, r)
			return
		}
	case strings.HasPrefix(path, "/api/v1/providers/"):
		segments := strings.Split(strings.TrimPrefix(path, "/api/v1/providers/"), "/")
		if len(segments) == 2 && segments[1] == "health" && segments[0] != "" {
			if r.Method == http.MethodGet {
				rt.api.ProviderHealth(w, r, segments[0])
				return
			}
		}
		if len(segments) == 1 && segments[0] != "" {
			switch r.Method {
			case http.MethodGet:
				rt.api.GetProvider(w, r, segments[0])
				return
			case http.MethodPut:
				rt.api.UpdateProvider(w, r, segments[0])
				return
			case http.MethodDelete:
				rt.api.DeleteProvider(w, r, segments[0])
				return
			}
		}
	case path == "/api/v1/cache/stats":
		if r.Method == http.MethodGet {
			rt.api.CacheStats(w, r)
			return
		}
	case path == "/api/v1/cache":
		if r.Method == http.MethodDelete {
			rt.api.FlushCache(w, r)
			return
		}
	case path == "/api/v1/auth/login":
		if r.Method == http.MethodPost {
			rt.api.Login(w, r)
			return
		}
	case path == "/api/v1/auth/register":
		if r.Method == http.MethodPost {
			rt.api.Register(w, r)
			return
		}
	case path == "/api/v1/auth/me":
		if r.Method == http.MethodGet {
			rt.api.Me(w, r)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("{\"error\":\"not found\"}"))
}

func requiresAuth(path string) bool {
	switch path {
	case "/healthz", "/api/v1/auth/login", "/api/v1/auth/register":
		return false
	default:
		return strings.HasPrefix(path, "/api/v1/")
	}
}
