package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/wricardo/livestate/api"
	"github.com/wricardo/livestate/game/catalog"
	"github.com/wricardo/livestate/game/config"
	"github.com/wricardo/livestate/live/host"
	"github.com/wricardo/livestate/live/registry"
	"github.com/wricardo/livestate/transport/mcp"
	"github.com/wricardo/livestate/transport/websocket"
	"go.uber.org/zap"
)

// app wires the registry, the live WebSocket handler and the REST API.
type app struct {
	registry *registry.Registry
	live     *websocket.Handler
	api      *api.Server
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	reg, err := registry.New(logger, catalog.Routes(cfg),
		registry.WithHostOptions(host.WithInboxSize(cfg.Host.InboxSize)))
	if err != nil {
		return nil, err
	}

	live := websocket.NewHandler(reg, logger, websocket.Options{
		InitialRoute:   cfg.Routes.Initial,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Session: websocket.SessionOptions{
			HeartbeatInterval: cfg.Session.HeartbeatInterval,
			ClientTimeout:     cfg.Session.ClientTimeout,
			InboxSize:         cfg.Session.InboxSize,
			MaxMessageSize:    cfg.Session.MaxMessageSize,
		},
	})

	return &app{
		registry: reg,
		live:     live,
		api: api.NewServer(reg, live, logger, api.Options{
			Version:   Version,
			StaticDir: cfg.Server.StaticDir,
		}),
	}, nil
}

// start runs the registry until ctx is canceled.
func (a *app) start(ctx context.Context) {
	go a.registry.Run(ctx)
}

// shutdown closes every live session.
func (a *app) shutdown(ctx context.Context) error {
	return a.live.Shutdown(ctx)
}

// router mounts the API at the root and, when mcpClient is set, the /mcp endpoint.
func (a *app) router(mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", a.api)
	if mcpClient != nil {
		mainRouter.Handle("/mcp", mcpHandler(mcpClient))
	}
	return mainRouter
}

// mcpHandler answers one JSON-RPC message per POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}
