// ABOUTME: Tests for gateway construction and component wiring.
// ABOUTME: Uses stub engine binaries so no real CLI is needed.

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portico-dev/portico/internal/config"
	"github.com/portico-dev/portico/internal/engine"
)

func stubBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "portico.db")
	cfg.Workspace.Dir = t.TempDir()
	return cfg
}

func TestNew_NoEngineInstalled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.ClaudeBinary = "/does/not/exist/claude"
	cfg.Engine.CodexBinary = "/does/not/exist/codex"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)

	var unavailable *engine.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestNew_WiresComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.ClaudeBinary = stubBinary(t)
	cfg.Engine.CodexBinary = "/does/not/exist/codex"

	gw, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer gw.identity.Close()

	assert.Equal(t, "claude", gw.EngineName())
	assert.Len(t, gw.PairingCode(), 6)
	assert.NotEmpty(t, gw.DeviceID())
	assert.Nil(t, gw.relay, "relay stays off unless enabled")

	// The wired router answers health without pairing.
	rec := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_DeviceIDSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.ClaudeBinary = stubBinary(t)

	gw, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	first := gw.DeviceID()
	require.NoError(t, gw.identity.Close())

	gw, err = New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer gw.identity.Close()

	assert.Equal(t, first, gw.DeviceID())
}

func TestNew_RelayEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.ClaudeBinary = stubBinary(t)
	cfg.Relay.Enabled = true
	cfg.Relay.URL = "ws://127.0.0.1:1/gateway"

	gw, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer gw.identity.Close()

	assert.NotNil(t, gw.relay)
}
