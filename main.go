// Command livestate serves live views: server-owned state pushed to browsers
// over WebSocket, one projection per user.
//
// It supports three commands:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the /ws live endpoint, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP server if none is available
//  3. "validate" – prints the effective configuration after file and environment overrides
//
// Flags control the config file, host/port, debug logging, and optional ngrok
// tunneling for easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/livestate/game/config"
	"github.com/wricardo/livestate/transport/mcp"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "livestate"
)

func main() {
	// Load .env before flags read their environment sources.
	envErr := godotenv.Load()

	if err := newCommand(envErr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. envErr is the result of loading .env, reported
// once a logger exists.
func newCommand(envErr error) *cli.Command {
	var logger *zap.Logger

	return &cli.Command{
		Name:    AppName,
		Usage:   "real-time state sync for live views",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "livestate.yaml",
				Usage:   "YAML configuration file (missing file means defaults)",
				Sources: cli.EnvVars("LIVESTATE_CONFIG"),
			},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (overrides config)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			var err error
			logger, err = newLogger(cmd.Bool("debug"))
			if err != nil {
				return ctx, err
			}
			switch {
			case envErr == nil:
				logger.Debug("loaded environment from .env")
			case !errors.Is(envErr, os.ErrNotExist):
				logger.Warn("failed to load .env", zap.Error(envErr))
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if logger != nil {
				logger.Sync()
			}
			return nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, cmd, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP server with REST API, live WebSocket endpoint and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServe(ctx, cmd, logger)
				},
			},
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server, starting an internal HTTP server if none is running",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCP(ctx, cmd, logger)
				},
			},
			{
				Name:  "validate",
				Usage: "Print the effective configuration and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					out, err := cfg.YAML()
					if err != nil {
						return err
					}
					_, err = cmd.Root().Writer.Write(out)
					return err
				},
			},
		},
	}
}

// newLogger returns a development logger when debug is set.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the config file with environment overrides, then applies
// the command line flags last.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("ngrok") {
		cfg.Tunnel.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Tunnel.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Tunnel.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe starts the HTTP server and, if configured, an ngrok tunnel serving
// the same handler. It returns after a signal once every session is closed.
func runServe(ctx context.Context, cmd *cli.Command, logger *zap.Logger) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
	}
	baseURL := "http://" + listener.Addr().String()

	a, err := newApp(cfg, logger)
	if err != nil {
		listener.Close()
		return err
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	a.start(appCtx)

	handler := a.router(mcp.NewClient(baseURL))

	// WriteTimeout stays zero: hijacked WebSocket connections manage their own deadlines.
	httpServer := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log := logger.Named("main")
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("HTTP server listening",
			zap.String("version", Version),
			zap.String("api", baseURL+"/api"),
			zap.String("live", "ws://"+listener.Addr().String()+"/ws?uuid=<uuid>&route="+cfg.Routes.Initial),
			zap.String("mcp", baseURL+"/mcp"))

		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	if cfg.Tunnel.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveTunnel(ctx, cfg.Tunnel, handler, log)
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := a.shutdown(shutdownCtx); err != nil {
		log.Warn("live sessions did not close in time", zap.Error(err))
	}
	cancelApp()
	<-a.registry.Done()

	wg.Wait()
	log.Info("server stopped")
	return nil
}

// serveTunnel exposes handler through ngrok until ctx is canceled.
func serveTunnel(ctx context.Context, cfg config.TunnelConfig, handler http.Handler, log *zap.Logger) {
	if cfg.AuthToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or LIVESTATE_TUNNEL_AUTH_TOKEN)")
		return
	}

	log.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		log.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	url := tun.URL()
	log.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"))

	if err := tunnelServer.Serve(tun); err != nil && err != http.ErrServerClosed {
		log.Warn("ngrok server error", zap.Error(err))
	}
	log.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses a server already listening
// on the configured address; otherwise it starts an internal one bound to a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command, logger *zap.Logger) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("main")

	baseURL := "http://" + cfg.Server.Addr()
	if !apiAvailable(ctx, baseURL) {
		log.Info("no external server found, starting internal HTTP server", zap.String("checked", baseURL))

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		a, err := newApp(cfg, logger)
		if err != nil {
			listener.Close()
			return err
		}
		appCtx, cancelApp := context.WithCancel(ctx)
		defer cancelApp()
		a.start(appCtx)

		internal := &http.Server{Handler: a.router(nil)}
		defer internal.Close()
		go func() {
			if err := internal.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Error("internal HTTP server error", zap.Error(err))
			}
		}()
	}

	log.Info("MCP stdio server ready", zap.String("api", baseURL))

	mcpClient := mcp.NewClient(baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a livestate server answers at baseURL.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
