package registry

import "context"

// Result is the successful outcome of a tool invocation. The registry treats
// it as an opaque payload; the transport layer decides how to encode it.
type Result struct {
	// Content is the tool's textual output, typically a JSON string or
	// human-readable text.
	Content string

	// Structured optionally carries a machine-readable payload alongside
	// Content. May be nil.
	Structured map[string]any
}

// Handler is the capability every tool invocation target must provide,
// regardless of whether its entry was seeded at build time or registered at
// runtime. S is the caller-supplied service context type.
//
// Invoke must not be assumed to complete quickly: it may perform I/O or
// sub-calls and must respect ctx for cancellation and deadlines. The caller
// abandons an invocation by cancelling ctx; handlers must tolerate that
// without corrupting any state they own.
//
// A single Handler instance may back several entries. The handler alone
// arbitrates concurrent invocations of itself; the registry never inspects or
// synchronizes handler-internal state.
type Handler[S any] interface {
	Invoke(ctx context.Context, service S, args map[string]any) (*Result, error)
}

// HandlerFunc adapts an ordinary function to the [Handler] interface.
type HandlerFunc[S any] func(ctx context.Context, service S, args map[string]any) (*Result, error)

// Invoke calls f.
func (f HandlerFunc[S]) Invoke(ctx context.Context, service S, args map[string]any) (*Result, error) {
	return f(ctx, service, args)
}
