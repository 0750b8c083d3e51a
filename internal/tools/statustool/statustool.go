// Package statustool provides the built-in "status" tool, which reports the
// server's uptime and the size of its tool catalogue by origin.
package statustool

import (
	"context"
	"encoding/json"

	"github.com/toolrack/toolrack/internal/registry"
	"github.com/toolrack/toolrack/internal/tools"
)

// statusReport is the JSON-encoded output of the "status" tool.
type statusReport struct {
	// UptimeSeconds is the whole seconds elapsed since server start.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// BuildTimeTools is the number of tools seeded at build time.
	BuildTimeTools int `json:"build_time_tools"`

	// RuntimeTools is the number of tools registered at runtime.
	RuntimeTools int `json:"runtime_tools"`
}

// Tools returns the status tool ready for inclusion in the build-time batch.
func Tools[S tools.Service]() []tools.Static[S] {
	return []tools.Static[S]{
		{
			Name:        "status",
			Description: "Reports server uptime and tool catalogue counts.",
			Schema:      map[string]any{"type": "object"},
			Handler: registry.HandlerFunc[S](func(_ context.Context, svc S, _ map[string]any) (*registry.Result, error) {
				buildTime, runtime := svc.CountTools()
				report := statusReport{
					UptimeSeconds:  int64(svc.Uptime().Seconds()),
					BuildTimeTools: buildTime,
					RuntimeTools:   runtime,
				}
				data, err := json.Marshal(report)
				if err != nil {
					return nil, registry.Internal("encode status report: %v", err)
				}
				return &registry.Result{
					Content: string(data),
					Structured: map[string]any{
						"uptime_seconds":   report.UptimeSeconds,
						"build_time_tools": report.BuildTimeTools,
						"runtime_tools":    report.RuntimeTools,
					},
				}, nil
			}),
		},
	}
}
