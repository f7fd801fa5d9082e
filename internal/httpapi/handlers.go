package httpapi

import (
	"encoding/json"
	"net/http"

	"flagrush/internal/relay"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Status reports process uptime and current room/player counts.
func Status(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rl.Counts())
	}
}
