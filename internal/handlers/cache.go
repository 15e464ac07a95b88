package handlers

import "net/http"

func (a *API) CacheStats(w http.ResponseWriter, r *http.Request) {
	cache := a.Engine.Cache()
	if cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	writeJSON(w, http.StatusOK, cache.Stats())
}

func (a *API) FlushCache(w http.ResponseWriter, r *http.Request) {
	cache := a.Engine.Cache()
	if cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	cache.Flush()
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "flushed",
	})
}
