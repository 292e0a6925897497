package health

import (
	"context"
	"os"
	"runtime"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Collect returns a health snapshot for the current process. The backend
// probe honours ctx.
func Collect(ctx context.Context, opts Options) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Status:     StatusHealthy,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Channels:  opts.Channels,
		Sessions:  opts.Sessions,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if opts.ConfigPath != "" {
		s.Config = inspectConfig(opts.ConfigPath)
	}

	if opts.Prober != nil {
		s.Backend = probeBackend(ctx, opts.BaseURL, opts.Prober)
		if !s.Backend.Reachable {
			s.Status = StatusUnhealthy
		}
	}

	return s
}

func probeBackend(ctx context.Context, url string, p Prober) *BackendInfo {
	info := &BackendInfo{URL: url}
	start := time.Now()
	hi, err := p.Health(ctx)
	info.LatencyMS = durationMS(time.Since(start))

	if hi != nil {
		info.Status = hi.Status
		info.Message = hi.Message
		info.Version = hi.Version
	}
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Reachable = true
	return info
}

func inspectConfig(path string) *ConfigInfo {
	_, err := os.Stat(path)
	return &ConfigInfo{Path: path, Exists: err == nil}
}
