package logger

import (
	"bytes"
	"testing"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ gocron.Logger = SchedulerLogger{}

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	require.NoError(t, Init(Config{Enabled: true, Level: level}, ""))
	var buf bytes.Buffer
	Intercept(&buf)
	t.Cleanup(func() {
		Restore()
		_ = Init(Config{Enabled: true}, "")
	})
	return &buf
}

func TestComponentTagsRecords(t *testing.T) {
	buf := capture(t, "info")

	For("monitor").Info("connectivity changed", "to", "connected")
	For("monitor").Debug("probe succeeded")

	out := buf.String()
	assert.Contains(t, out, "component=monitor")
	assert.Contains(t, out, "connectivity changed")
	assert.NotContains(t, out, "probe succeeded")
}

func TestSchedulerInfoIsDebug(t *testing.T) {
	buf := capture(t, "info")
	s := For("monitor").Scheduler()

	s.Info("gocron: new scheduler created")
	assert.Empty(t, buf.String())

	s.Warn("gocron: job missed")
	s.Error("gocron: shutdown failed")
	assert.Contains(t, buf.String(), "job missed")
	assert.Contains(t, buf.String(), "shutdown failed")
}

func TestSchedulerInfoShowsAtDebugLevel(t *testing.T) {
	buf := capture(t, "debug")

	For("sweeper").Scheduler().Info("gocron: scheduler started")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "component=sweeper")
}
