package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flagrush/internal/relay"
	"flagrush/internal/ws"
)

func SetupRoutes(r *relay.Relay, log *zap.Logger, originPatterns []string) http.Handler {
	router := chi.NewRouter()

	router.Get("/ws", ws.Handler(r, log, originPatterns))
	router.Get("/healthz", Healthz)
	router.Get("/status", Status(r))
	return router
}
