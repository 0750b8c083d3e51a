// Package tools defines the shared [Static] type used by all built-in tool
// packages in toolrack. Each sub-package exports a constructor that returns a
// slice of [Static] values; [Entries] converts them into the build-time seed
// batch consumed by the registry.
package tools

import (
	"time"

	"github.com/toolrack/toolrack/internal/registry"
)

// Static describes a built-in tool produced at build time. It carries the
// tool's public descriptor together with the handler invoked on dispatch.
type Static[S any] struct {
	// Name is the tool's unique name.
	Name string

	// Description is the tool's human-readable description.
	Description string

	// Schema is the JSON Schema document for the tool's parameters. A nil
	// schema means the tool takes no parameters.
	Schema map[string]any

	// Handler executes the tool. Implementations must be safe for
	// concurrent use and must respect context cancellation.
	Handler registry.Handler[S]
}

// Service is the view of the hosting server that introspective built-in
// tools rely on. The concrete host (internal/server.Service) satisfies it.
type Service interface {
	// Uptime returns the time elapsed since the server started.
	Uptime() time.Duration

	// CountTools returns the number of registered tools per origin.
	CountTools() (buildTime, runtime int)
}

// Entries converts built-in tool descriptions into the registry's build-time
// seed batch, preserving order across the given groups.
func Entries[S any](groups ...[]Static[S]) []registry.Entry[S] {
	var out []registry.Entry[S]
	for _, group := range groups {
		for _, s := range group {
			out = append(out, registry.NewStatic(s.Name, s.Description, s.Schema, s.Handler))
		}
	}
	return out
}
