// Package health builds the report printed by the health command and the
// /health chat action.
package health

import (
	"context"
	"time"

	"github.com/linanwx/nagowidget/backend"
)

// Prober performs a single backend health check.
type Prober interface {
	Health(ctx context.Context) (*backend.HealthInfo, error)
}

// Options controls what Collect includes.
type Options struct {
	BaseURL string
	Prober  Prober // nil skips the backend probe

	ConfigPath string
	Channels   *ChannelsInfo
	Sessions   []SessionInfo
}

// Snapshot is the full report.
type Snapshot struct {
	Status     string        `json:"status" yaml:"status"` // healthy or unhealthy
	Backend    *BackendInfo  `json:"backend,omitempty" yaml:"backend,omitempty"`
	Config     *ConfigInfo   `json:"config,omitempty" yaml:"config,omitempty"`
	Channels   *ChannelsInfo `json:"channels,omitempty" yaml:"channels,omitempty"`
	Sessions   []SessionInfo `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	Goroutines int           `json:"goroutines" yaml:"goroutines"`
	Memory     MemoryInfo    `json:"memory" yaml:"memory"`
	Runtime    RuntimeInfo   `json:"runtime" yaml:"runtime"`
	Timestamp  string        `json:"timestamp" yaml:"timestamp"`
}

// BackendInfo is the outcome of the backend probe.
type BackendInfo struct {
	URL       string  `json:"url" yaml:"url"`
	Reachable bool    `json:"reachable" yaml:"reachable"`
	Status    string  `json:"status,omitempty" yaml:"status,omitempty"`
	Message   string  `json:"message,omitempty" yaml:"message,omitempty"`
	Version   string  `json:"version,omitempty" yaml:"version,omitempty"`
	LatencyMS float64 `json:"latencyMs" yaml:"latencyMs"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ConfigInfo describes the config file in use.
type ConfigInfo struct {
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
}

// ChannelsInfo holds channel config for health output.
type ChannelsInfo struct {
	Telegram *TelegramInfo `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

// TelegramInfo holds Telegram config for health output.
type TelegramInfo struct {
	Configured bool    `json:"configured" yaml:"configured"`
	AllowedIDs []int64 `json:"allowedIds,omitempty" yaml:"allowedIds,omitempty"`
	SessionTTL string  `json:"sessionTTL,omitempty" yaml:"sessionTTL,omitempty"`
}

// SessionInfo summarizes one live chat session.
type SessionInfo struct {
	Route        string `json:"route" yaml:"route"`
	UserID       string `json:"userId" yaml:"userId"`
	Connectivity string `json:"connectivity" yaml:"connectivity"`
	Panel        string `json:"panel" yaml:"panel"`
	Messages     int    `json:"messages" yaml:"messages"`
	Pending      bool   `json:"pending" yaml:"pending"`
	IdleFor      string `json:"idleFor,omitempty" yaml:"idleFor,omitempty"`
}

// MemoryInfo holds process memory stats in megabytes.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMb" yaml:"allocMb"`
	TotalAllocMB float64 `json:"totalAllocMb" yaml:"totalAllocMb"`
	SysMB        float64 `json:"sysMb" yaml:"sysMb"`
	NumGC        uint32  `json:"numGc" yaml:"numGc"`
}

// RuntimeInfo describes the Go runtime.
type RuntimeInfo struct {
	Version string `json:"version" yaml:"version"`
	OS      string `json:"os" yaml:"os"`
	Arch    string `json:"arch" yaml:"arch"`
	CPUs    int    `json:"cpus" yaml:"cpus"`
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
