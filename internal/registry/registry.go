// Package registry implements the tool dispatch registry at the core of
// toolrack: a named set of invocable operations, some seeded at build time
// and some added or removed while the process is running, merged into one
// namespace with a single uniqueness invariant.
//
// The registry is generic over S, the service context type handed to every
// handler. A typical host instantiates Registry[*server.Service].
//
// Concurrency: a Registry is deliberately NOT internally synchronized. All
// reads complete without blocking and may run in parallel with each other,
// but the owning host must serialize mutations against reads and against
// other mutations — conventionally by wrapping the registry in a
// [sync.RWMutex] (see internal/server). This keeps the core free of any
// particular concurrency primitive and usable from single-threaded hosts.
//
// Typical usage:
//
//	reg, err := registry.New(staticBatch...)
//	...
//	err = reg.Register("echo", "echoes a message", schema, handler)
//	...
//	res, err := registry.Dispatch(ctx, reg, "echo", svc, args)
package registry

import "slices"

// Registry is an ordered, name-keyed collection of entries. The zero value is
// not usable; create instances with [New].
type Registry[S any] struct {
	entries map[string]*Entry[S]

	// order holds names in insertion order: the seed batch first, then
	// runtime entries in registration order.
	order []string
}

// Summary is the listing projection of an entry, consumed by the protocol
// layer to answer a "list available tools" request.
type Summary struct {
	// Name is the tool's unique name.
	Name string

	// Description is the tool's optional description.
	Description string

	// Schema is the tool's parameter-schema document.
	Schema map[string]any
}

// New creates a registry pre-seeded with the given build-time batch, in batch
// order. It fails with a [RegistrationError] of kind [KindDuplicateTool] if
// the batch itself repeats a name; well-formed generated batches never do,
// but the invariant is enforced here regardless.
func New[S any](seed ...Entry[S]) (*Registry[S], error) {
	r := &Registry[S]{entries: make(map[string]*Entry[S], len(seed))}
	for i := range seed {
		e := seed[i]
		if _, exists := r.entries[e.name]; exists {
			return nil, &RegistrationError{Kind: KindDuplicateTool, Name: e.name}
		}
		r.entries[e.name] = &e
		r.order = append(r.order, e.name)
	}
	return r, nil
}

// Register inserts a runtime entry. It fails with a [RegistrationError] of
// kind [KindInvalidName] when name is empty, [KindInvalidSchema] when schema
// is not an object-shaped document, and [KindDuplicateTool] when the name is
// already present — whether the existing entry came from the build-time batch
// or an earlier Register call. On any failure the registry is unchanged.
//
// schema may be nil (defaults to the empty object schema), a map[string]any,
// or any value that marshals to a JSON object. Its internals are opaque to
// the registry; handlers own parameter validation.
func (r *Registry[S]) Register(name, description string, schema any, handler Handler[S]) error {
	if name == "" {
		return &RegistrationError{Kind: KindInvalidName}
	}
	if handler == nil {
		panic("registry: Register called with a nil handler")
	}
	if _, exists := r.entries[name]; exists {
		return &RegistrationError{Kind: KindDuplicateTool, Name: name}
	}
	normalized, err := normalizeSchema(schema)
	if err != nil {
		return &RegistrationError{Kind: KindInvalidSchema, Name: name, Reason: err.Error()}
	}

	r.entries[name] = &Entry[S]{
		name:        name,
		description: description,
		schema:      normalized,
		origin:      OriginRuntime,
		handler:     handler,
	}
	r.order = append(r.order, name)
	return nil
}

// Unregister removes the named runtime entry. It fails with a
// [NotFoundError] when no entry with that name exists or when the entry was
// seeded at build time — the two cases are deliberately indistinguishable to
// the caller, so a protected entry looks absent for mutation purposes.
//
// A name freed by Unregister may be registered again immediately.
// Invocations already in flight against the removed handler are independent
// and run to completion unaffected.
func (r *Registry[S]) Unregister(name string) error {
	e, ok := r.entries[name]
	if !ok || e.origin == OriginBuildTime {
		return &NotFoundError{Name: name}
	}
	delete(r.entries, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return nil
}

// Merge absorbs every entry of other into r, preserving other's insertion
// order and each entry's origin. It fails with a [RegistrationError] of kind
// [KindDuplicateTool] on the first name collision; entries merged before the
// collision remain. Used to combine per-package build-time batches into one
// registry.
func (r *Registry[S]) Merge(other *Registry[S]) error {
	for _, name := range other.order {
		if _, exists := r.entries[name]; exists {
			return &RegistrationError{Kind: KindDuplicateTool, Name: name}
		}
		r.entries[name] = other.entries[name]
		r.order = append(r.order, name)
	}
	return nil
}

// Lookup returns the entry with the given name. It is a pure read and never
// fails; the second return value reports presence.
func (r *Registry[S]) Lookup(name string) (*Entry[S], bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Contains reports whether an entry with the given name exists.
func (r *Registry[S]) Contains(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Len returns the total number of entries across both origins.
func (r *Registry[S]) Len() int { return len(r.entries) }

// CountByOrigin returns the number of entries with the given origin.
func (r *Registry[S]) CountByOrigin(origin Origin) int {
	n := 0
	for _, e := range r.entries {
		if e.origin == origin {
			n++
		}
	}
	return n
}

// List returns a snapshot of all entries in insertion order: the build-time
// batch first in its original order, then runtime entries in registration
// order. The returned slice is owned by the caller and does not reflect
// later mutations.
func (r *Registry[S]) List() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, Summary{Name: e.name, Description: e.description, Schema: e.schema})
	}
	return out
}
