package health

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Render formats a snapshot as text (default), yaml or json.
func Render(s Snapshot, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to serialize health snapshot: %w", err)
		}
		return string(data), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("failed to serialize health snapshot: %w", err)
		}
		return string(data), nil
	case "", "text":
		return Summary(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (use text, yaml or json)", format)
	}
}

// Summary is the short human-readable form used by chat surfaces.
func Summary(s Snapshot) string {
	var b strings.Builder
	if s.Backend != nil {
		be := s.Backend
		if be.Reachable {
			fmt.Fprintf(&b, "✅ AI Assistant API is online\n")
		} else {
			fmt.Fprintf(&b, "❌ AI Assistant API is offline\n")
		}
		fmt.Fprintf(&b, "API URL: %s\n", be.URL)
		if be.Status != "" {
			fmt.Fprintf(&b, "Status: %s\n", be.Status)
		}
		if be.Message != "" {
			fmt.Fprintf(&b, "Message: %s\n", be.Message)
		}
		if be.Version != "" {
			fmt.Fprintf(&b, "Version: %s\n", be.Version)
		}
		fmt.Fprintf(&b, "Response time: %.1f ms\n", be.LatencyMS)
		if be.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", be.Error)
		}
	}
	if len(s.Sessions) > 0 {
		fmt.Fprintf(&b, "Sessions: %d\n", len(s.Sessions))
	}
	fmt.Fprintf(&b, "Client: %s %s/%s, %d goroutines", s.Runtime.Version, s.Runtime.OS, s.Runtime.Arch, s.Goroutines)
	return b.String()
}
