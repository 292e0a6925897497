package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/internal/fakebackend"
)

func TestCollectReachableBackend(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}"), 0o600))

	s := Collect(context.Background(), Options{
		BaseURL:    srv.URL,
		Prober:     backend.NewClient(backend.Config{BaseURL: srv.URL}),
		ConfigPath: cfgPath,
		Sessions:   []SessionInfo{{Route: "cli", UserID: "u1", Connectivity: "connected"}},
	})

	assert.Equal(t, StatusHealthy, s.Status)
	require.NotNil(t, s.Backend)
	assert.True(t, s.Backend.Reachable)
	assert.Equal(t, "1.0.0", s.Backend.Version)
	assert.True(t, s.Config.Exists)
	assert.Positive(t, s.Goroutines)

	text := Summary(s)
	assert.Contains(t, text, "online")
	assert.Contains(t, text, "Version: 1.0.0")
	assert.Contains(t, text, "Sessions: 1")
}

func TestCollectUnreachableBackend(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()
	srv.SetHealthStatus(http.StatusBadGateway)

	s := Collect(context.Background(), Options{
		BaseURL:    srv.URL,
		Prober:     backend.NewClient(backend.Config{BaseURL: srv.URL}),
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})

	assert.Equal(t, StatusUnhealthy, s.Status)
	assert.False(t, s.Backend.Reachable)
	assert.NotEmpty(t, s.Backend.Error)
	assert.False(t, s.Config.Exists)
	assert.Contains(t, Summary(s), "offline")
}

func TestRenderFormats(t *testing.T) {
	s := Collect(context.Background(), Options{})
	assert.Nil(t, s.Backend)

	out, err := Render(s, "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, StatusHealthy, decoded["status"])

	out, err = Render(s, "YAML")
	require.NoError(t, err)
	var fromYAML Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, s.Runtime, fromYAML.Runtime)

	out, err = Render(s, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Client:")

	_, err = Render(s, "xml")
	assert.Error(t, err)
}
