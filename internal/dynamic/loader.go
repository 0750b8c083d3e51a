package dynamic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toolrack/toolrack/internal/registry"
)

// Registrar is the view of the hosting server the loader mutates through.
// The concrete host (internal/server.Service) satisfies it with proper
// serialisation of mutations against concurrent dispatches.
type Registrar[S any] interface {
	RegisterTool(name, description string, schema any, handler registry.Handler[S]) error
	UnregisterTool(name string) error
}

// Loader reconciles the dispatch registry with the tool_definitions table.
// It owns every runtime entry it registers and never touches entries it did
// not create (build-time entries are protected by the registry anyway).
//
// A Loader is driven by a single goroutine — either periodic [Loader.Run] or
// explicit [Loader.Sync] calls — and is not safe for concurrent use with
// itself.
type Loader[S any] struct {
	store *Store
	reg   Registrar[S]

	// applied maps each registered name to the UpdatedAt of the definition
	// version currently in the registry.
	applied map[string]time.Time
}

// NewLoader creates a loader over the given store and registrar.
func NewLoader[S any](store *Store, reg Registrar[S]) *Loader[S] {
	return &Loader[S]{
		store:   store,
		reg:     reg,
		applied: make(map[string]time.Time),
	}
}

// Sync performs one reconciliation pass:
//
//   - definitions present and enabled but not yet registered are registered;
//   - definitions deleted or disabled since the last pass are unregistered;
//   - definitions whose updated_at advanced are replaced (unregister then
//     register, so in-flight invocations of the old handler are unaffected).
//
// Per-definition failures (malformed spec, name collisions) are logged and
// skipped; Sync only fails when the store itself cannot be read.
func (l *Loader[S]) Sync(ctx context.Context) error {
	defs, err := l.store.List(ctx)
	if err != nil {
		return fmt.Errorf("dynamic: sync: %w", err)
	}

	desired := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if def.Enabled {
			desired[def.Name] = def
		}
	}

	// Retire entries whose definition vanished or was disabled.
	for name := range l.applied {
		if _, keep := desired[name]; keep {
			continue
		}
		if err := l.reg.UnregisterTool(name); err != nil {
			slog.Warn("dynamic: unregister failed", "tool", name, "error", err)
		}
		delete(l.applied, name)
	}

	// Register new definitions and replace changed ones.
	for name, def := range desired {
		appliedAt, exists := l.applied[name]
		if exists && !def.UpdatedAt.After(appliedAt) {
			continue
		}
		if exists {
			if err := l.reg.UnregisterTool(name); err != nil {
				slog.Warn("dynamic: unregister for replace failed", "tool", name, "error", err)
				continue
			}
			delete(l.applied, name)
		}

		handler, err := buildHandler[S](l.store, def)
		if err != nil {
			slog.Warn("dynamic: skipping definition", "tool", name, "error", err)
			continue
		}
		if err := l.reg.RegisterTool(def.Name, def.Description, def.InputSchema, handler); err != nil {
			slog.Warn("dynamic: register failed", "tool", name, "error", err)
			continue
		}
		l.applied[name] = def.UpdatedAt
		slog.Info("dynamic: tool registered", "tool", name, "kind", def.Kind)
	}

	return nil
}

// Run reconciles immediately and then every interval until ctx is done.
// Individual sync failures are logged; Run only returns ctx.Err().
func (l *Loader[S]) Run(ctx context.Context, interval time.Duration) error {
	if err := l.Sync(ctx); err != nil {
		slog.Error("dynamic: initial sync failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Sync(ctx); err != nil {
				slog.Error("dynamic: sync failed", "error", err)
			}
		}
	}
}
