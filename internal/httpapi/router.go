// Package httpapi wires the HTTP/WS Gateway: a gorilla/mux router exposing
// /health and /ws behind connection auth and CORS.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/authn"
	"github.com/sumanthd032/collabtext/internal/registry"
	"github.com/sumanthd032/collabtext/internal/transport"
)

// Config bundles the gateway's tunables.
type Config struct {
	OutboundQueueSize int
	AllowedOrigins    []string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the process's HTTP handler: /health for load-balancer
// probes and /ws for the collaborative editing WebSocket, both behind a
// permissive CORS layer.
func NewRouter(reg *registry.Registry, auth *authn.Authenticator, health *HealthState, logger *zap.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Handle("/health", health).Methods(http.MethodGet)
	router.HandleFunc("/ws", wsHandler(reg, auth, logger, cfg.OutboundQueueSize)).Methods(http.MethodGet)

	return router
}

func wsHandler(reg *registry.Registry, auth *authn.Authenticator, logger *zap.Logger, queueSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		if err := auth.Authorize(r, clientID); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		transport.NewConn(conn, reg, logger, queueSize).Serve(r.Context())
	}
}
