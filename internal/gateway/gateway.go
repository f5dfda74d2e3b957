// ABOUTME: Gateway orchestrator that wires engine selection, pairing, HTTP, and the relay.
// ABOUTME: Owns component lifecycle: startup order, run loop, and graceful shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/portico-dev/portico/internal/config"
	"github.com/portico-dev/portico/internal/engine"
	"github.com/portico-dev/portico/internal/engine/claude"
	"github.com/portico-dev/portico/internal/engine/codex"
	"github.com/portico-dev/portico/internal/httpapi"
	"github.com/portico-dev/portico/internal/identity"
	"github.com/portico-dev/portico/internal/pairing"
	"github.com/portico-dev/portico/internal/relay"
)

// Gateway orchestrates the portico server components: one selected chat
// engine, the pairing authority, the inbound HTTP server, and (when enabled)
// the outbound broker relay.
type Gateway struct {
	config     *config.Config
	authority  *pairing.Authority
	identity   *identity.Store
	engine     engine.Engine
	relay      *relay.Client
	httpServer *http.Server
	logger     *slog.Logger

	// deviceID identifies this gateway instance to the broker
	deviceID string
}

// New creates a Gateway: it opens the identity store, probes and selects a
// chat engine, and builds the HTTP and relay components. Engine selection is
// fatal here when no engine is installed; there is nothing to serve without
// one.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	ids, err := identity.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening identity store: %w", err)
	}

	deviceID, err := ids.EnsureDeviceID(ctx)
	if err != nil {
		_ = ids.Close()
		return nil, fmt.Errorf("resolving device id: %w", err)
	}

	selector := engine.NewSelector(logger,
		claude.New(cfg.Engine.ClaudeBinary, logger),
		codex.New(cfg.Engine.CodexBinary, logger),
	)
	eng, err := selector.Select(ctx)
	if err != nil {
		_ = ids.Close()
		return nil, err
	}

	authority := pairing.New()

	gw := &Gateway{
		config:    cfg,
		authority: authority,
		identity:  ids,
		engine:    eng,
		logger:    logger.With("component", "gateway"),
		deviceID:  deviceID,
	}

	api := httpapi.New(httpapi.Config{
		Authority: authority,
		Engine:    eng,
		WorkDir:   cfg.Workspace.Dir,
		Logger:    logger,
	})

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout stays zero: chat responses are long-lived SSE streams.
	}

	if cfg.Relay.Enabled {
		gw.relay = relay.New(relay.Config{
			URL:               cfg.Relay.URL,
			DeviceID:          deviceID,
			Authority:         authority,
			Engine:            eng,
			WorkDir:           cfg.Workspace.Dir,
			HeartbeatInterval: cfg.Relay.HeartbeatInterval,
			ReconnectDelay:    cfg.Relay.ReconnectDelay,
			Logger:            logger,
			OnStatus: func(status relay.Status) {
				gw.logger.Info("relay status changed", "status", string(status))
			},
		})
	}

	return gw, nil
}

// PairingCode returns the code a client must present to pair with this
// gateway. It is stable for the life of the process.
func (g *Gateway) PairingCode() string { return g.authority.Secret() }

// EngineName returns the name of the selected chat engine.
func (g *Gateway) EngineName() string { return g.engine.Name() }

// DeviceID returns this gateway's persistent broker identity.
func (g *Gateway) DeviceID() string { return g.deviceID }

// Run starts the HTTP server and relay and blocks until the context is
// canceled or the HTTP server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if g.relay != nil {
		g.relay.Start(ctx)
	}

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown stops components in reverse startup order. A fresh
// context is used because the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	if g.relay != nil {
		g.relay.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := g.httpServer.Shutdown(ctx)
	if closeErr := g.identity.Close(); err == nil {
		err = closeErr
	}
	return err
}
