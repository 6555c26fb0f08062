package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"camlink/internal/core/services"
	"camlink/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newControlServer(t *testing.T, ready func(context.Context) error) *http.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	zapLogger := zap.NewNop()
	sessions := services.NewSessionManager(zapLogger.Sugar())
	return controlServer(cfg, zapLogger.Sugar(), zapLogger, sessions, ready)
}

func TestControlServerReadinessWiring(t *testing.T) {
	srv := newControlServer(t, func(context.Context) error {
		return errors.New("storage unreachable")
	})

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "storage unreachable")
}

func TestControlServerRoutes(t *testing.T) {
	srv := newControlServer(t, nil)

	for _, path := range []string{"/healthz", "/ready", "/api/v1/streams"} {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
