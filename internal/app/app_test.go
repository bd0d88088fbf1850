package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/config"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Log.Level = "error"
	cfg.Audit.Path = filepath.Join(dir, "logs", "measurements.jsonl")
	cfg.Records.Path = filepath.Join(dir, "logs", "ranging.cbor")
	cfg.API.Listen = "127.0.0.1:0"
	cfg.Driver.EventDelay = time.Millisecond
	cfg.Ranging.MeasurementDelay = time.Millisecond
	cfg.Notify.Delay = time.Millisecond
	cfg.Responder.HeartbeatInterval = 5 * time.Millisecond
	return cfg
}

func TestRunInitiatorWritesRecords(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Enabled = false

	err := Run(context.Background(), Options{
		Mode:      ModeInitiator,
		Version:   "test",
		Config:    cfg,
		Limit:     2,
		LogOutput: io.Discard,
	})
	require.NoError(t, err)

	r, err := record.Open(cfg.Records.Path, record.Filter{Kind: "success"})
	require.NoError(t, err)
	defer r.Close()
	recs, err := r.All()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRunResponderBeats(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Enabled = false

	err := Run(context.Background(), Options{
		Mode:      ModeResponder,
		Config:    cfg,
		Limit:     2,
		LogOutput: io.Discard,
	})
	require.NoError(t, err)
}

func TestRunServesAPIUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Mode:      ModeInitiator,
			Version:   "test",
			Config:    cfg,
			LogOutput: io.Discard,
			Ready:     func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not become ready")
	}

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["result"])
	data, ok := health["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ModeInitiator, data["mode"])

	resp, err = http.Get("http://" + addr + "/api/v1/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	err := Run(context.Background(), Options{Mode: "sniffer", LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessPoint.Channel = 15
	err := Run(context.Background(), Options{Mode: ModeResponder, Config: cfg, LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestInstanceName(t *testing.T) {
	cfg := config.Defaults()
	cfg.Discovery.Instance = "bench-a"
	assert.Equal(t, "bench-a", instanceName(cfg, ModeInitiator))

	cfg.Discovery.Instance = ""
	assert.Contains(t, instanceName(cfg, ModeResponder), "-responder")
}
