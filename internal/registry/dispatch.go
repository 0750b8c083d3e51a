package registry

import "context"

// Resolve locates the entry for name in reg. It completes synchronously and
// never invokes a handler; an absent name yields a [DispatchError] of kind
// [KindUnknownTool].
func Resolve[S any](reg *Registry[S], name string) (*Entry[S], error) {
	e, ok := reg.Lookup(name)
	if !ok {
		return nil, &DispatchError{Kind: KindUnknownTool, Name: name}
	}
	return e, nil
}

// Invoke runs the entry's handler against the given service context and
// arguments. A handler failure is wrapped as a [DispatchError] of kind
// [KindHandlerFailed]; the inner error — typically an [*InvocationError] —
// is recoverable via [errors.As]. Invoke performs no retries and does not
// interpret the handler's error.
func Invoke[S any](ctx context.Context, e *Entry[S], service S, args map[string]any) (*Result, error) {
	res, err := e.handler.Invoke(ctx, service, args)
	if err != nil {
		return nil, &DispatchError{Kind: KindHandlerFailed, Name: e.name, Err: err}
	}
	return res, nil
}

// Dispatch resolves name in reg and invokes the matching handler. It is
// stateless pass-through logic: parameter validation belongs to the handler,
// and cancellation is the caller abandoning ctx. Hosts that guard the
// registry with a lock should instead call [Resolve] under the read lock and
// [Invoke] outside it, so slow handlers never block mutation.
func Dispatch[S any](ctx context.Context, reg *Registry[S], name string, service S, args map[string]any) (*Result, error) {
	e, err := Resolve(reg, name)
	if err != nil {
		return nil, err
	}
	return Invoke(ctx, e, service, args)
}
