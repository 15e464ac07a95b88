package handlers

import (
	"encoding/json"
	"net/http"

	"sealevel/backend/internal/auth"
	"sealevel/backend/internal/consensus"
	"sealevel/backend/internal/db"
	"sealevel/backend/internal/realtime"
)

type API struct {
	Engine *consensus.Engine
	Store  *consensus.Store
	Queue  *consensus.Queue
	DB     *db.Store
	Auth   *auth.Service
	Hub    *realtime.Hub
}

func NewAPI(engine *consensus.Engine, store *consensus.Store, queue *consensus.Queue, database *db.Store, authService *auth.Service, hub *realtime.Hub) *API {
	return &API{Engine: engine, Store: store, Queue: queue, DB: database, Auth: authService, Hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
