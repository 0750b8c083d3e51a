package registry

import (
	"encoding/json"
	"fmt"
)

// Origin records whether an entry was seeded at build time or registered
// while the process was running.
type Origin int

const (
	// OriginBuildTime marks entries seeded at construction. They can never
	// be removed by runtime mutation.
	OriginBuildTime Origin = iota

	// OriginRuntime marks entries added via [Registry.Register]. They can
	// be removed again via [Registry.Unregister].
	OriginRuntime
)

// String returns the human-readable name of the origin.
func (o Origin) String() string {
	if o == OriginBuildTime {
		return "build-time"
	}
	return "runtime"
}

// Entry is an immutable record pairing a tool name with its invocation
// target. Entries are created either through [NewStatic] (build-time batch)
// or internally by [Registry.Register] (runtime). The registry owns all of
// its entries; callers receive references that stay valid as long as the
// registry does.
type Entry[S any] struct {
	name        string
	description string
	schema      map[string]any
	origin      Origin
	handler     Handler[S]
}

// NewStatic builds a build-time entry for seeding via [New] or
// [Registry.Merge]. A nil schema defaults to the empty object schema.
//
// NewStatic panics if name is empty or handler is nil: build-time batches are
// produced by code, so a malformed entry is a defect in the producing
// package, not a runtime condition.
func NewStatic[S any](name, description string, schema map[string]any, handler Handler[S]) Entry[S] {
	if name == "" {
		panic("registry: static entry must have a non-empty name")
	}
	if handler == nil {
		panic(fmt.Sprintf("registry: static entry %q must have a non-nil handler", name))
	}
	doc, err := normalizeSchema(schema)
	if err != nil {
		panic(fmt.Sprintf("registry: static entry %q has an invalid schema: %v", name, err))
	}
	return Entry[S]{
		name:        name,
		description: description,
		schema:      doc,
		origin:      OriginBuildTime,
		handler:     handler,
	}
}

// Name returns the entry's unique tool name.
func (e *Entry[S]) Name() string { return e.name }

// Description returns the entry's optional human-readable description.
func (e *Entry[S]) Description() string { return e.description }

// Schema returns the entry's parameter-schema document. The registry only
// guarantees it is object-shaped; callers must not mutate it.
func (e *Entry[S]) Schema() map[string]any { return e.schema }

// Origin reports whether the entry was seeded at build time or registered at
// runtime.
func (e *Entry[S]) Origin() Origin { return e.origin }

// Handler returns the entry's invocation target.
func (e *Entry[S]) Handler() Handler[S] { return e.handler }

// normalizeSchema coerces an opaque schema document into an object-shaped
// map. A nil schema is valid and defaults to the empty object schema.
// Documents that are not JSON objects (arrays, strings, numbers) are
// rejected; the schema's internals are never interpreted.
//
// The returned map is always a private copy built from a JSON round trip, so
// a caller mutating its document after registration cannot reach into a
// stored entry.
func normalizeSchema(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object"}, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("schema is not a JSON document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("schema must be a JSON object")
	}
	if m == nil {
		// A typed-nil map or the literal document "null".
		return map[string]any{"type": "object"}, nil
	}
	return m, nil
}
