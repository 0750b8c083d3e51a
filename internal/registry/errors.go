package registry

import "fmt"

// RegistrationErrorKind distinguishes the ways a registration can be rejected.
type RegistrationErrorKind int

const (
	// KindDuplicateTool means the name is already taken, by either origin.
	KindDuplicateTool RegistrationErrorKind = iota

	// KindInvalidName means the name is empty.
	KindInvalidName

	// KindInvalidSchema means the schema document is not object-shaped.
	KindInvalidSchema
)

// String returns the human-readable name of the kind.
func (k RegistrationErrorKind) String() string {
	switch k {
	case KindDuplicateTool:
		return "duplicate tool"
	case KindInvalidName:
		return "invalid name"
	case KindInvalidSchema:
		return "invalid schema"
	default:
		return "unknown"
	}
}

// RegistrationError reports why [Registry.Register] (or seeding via [New])
// rejected an entry. All registration errors are local and non-retryable by
// the registry itself; the caller may fix its input and try again.
type RegistrationError struct {
	// Kind classifies the rejection.
	Kind RegistrationErrorKind

	// Name is the tool name the caller attempted to register.
	// Empty for KindInvalidName.
	Name string

	// Reason is an optional human-readable detail.
	Reason string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	switch e.Kind {
	case KindDuplicateTool:
		return fmt.Sprintf("registry: tool %q is already registered", e.Name)
	case KindInvalidName:
		return "registry: tool name must not be empty"
	case KindInvalidSchema:
		if e.Reason != "" {
			return fmt.Sprintf("registry: invalid schema for tool %q: %s", e.Name, e.Reason)
		}
		return fmt.Sprintf("registry: invalid schema for tool %q", e.Name)
	default:
		return fmt.Sprintf("registry: registration of tool %q failed", e.Name)
	}
}

// NotFoundError reports that [Registry.Unregister] could not remove the named
// entry. It covers both "no such tool" and "tool exists but was seeded at
// build time" — a protected entry is indistinguishable from an absent one for
// mutation purposes.
type NotFoundError struct {
	// Name is the tool name the caller attempted to remove.
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: tool %q not found", e.Name)
}

// DispatchErrorKind distinguishes the ways a dispatch can fail.
type DispatchErrorKind int

const (
	// KindUnknownTool means no entry with the requested name exists.
	KindUnknownTool DispatchErrorKind = iota

	// KindHandlerFailed means the entry was found but its handler returned
	// an error. The inner error is available via [DispatchError.Unwrap].
	KindHandlerFailed
)

// DispatchError reports why [Dispatch] (or [Resolve]/[Invoke]) failed.
type DispatchError struct {
	// Kind classifies the failure.
	Kind DispatchErrorKind

	// Name is the tool name that was dispatched.
	Name string

	// Err is the handler's error for KindHandlerFailed, nil otherwise.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Kind == KindUnknownTool {
		return fmt.Sprintf("registry: unknown tool %q", e.Name)
	}
	return fmt.Sprintf("registry: tool %q failed: %v", e.Name, e.Err)
}

// Unwrap returns the handler's error, if any, so callers can use
// [errors.Is] and [errors.As] on the inner failure.
func (e *DispatchError) Unwrap() error { return e.Err }

// InvocationErrorKind distinguishes handler-domain failure classes.
type InvocationErrorKind int

const (
	// KindInvalidParams means the arguments did not satisfy the handler's
	// declared schema (missing required field, wrong type, ...).
	KindInvalidParams InvocationErrorKind = iota

	// KindInternal means the handler itself or a downstream dependency
	// failed while executing.
	KindInternal
)

// String returns the machine-distinguishable name of the kind, suitable for
// inclusion in a protocol-level error reply.
func (k InvocationErrorKind) String() string {
	if k == KindInvalidParams {
		return "invalid_params"
	}
	return "internal"
}

// InvocationError is the error type handlers should return for domain
// failures. It carries a machine-distinguishable kind, a human-readable
// message, and optional structured detail — enough for the transport layer to
// build an error reply without inspecting registry state.
type InvocationError struct {
	// Kind classifies the failure.
	Kind InvocationErrorKind

	// Message is the human-readable description.
	Message string

	// Detail optionally carries structured context (offending field names,
	// downstream status, ...). May be nil.
	Detail map[string]any
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// InvalidParams returns an [InvocationError] of kind [KindInvalidParams].
func InvalidParams(format string, args ...any) *InvocationError {
	return &InvocationError{Kind: KindInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// Internal returns an [InvocationError] of kind [KindInternal].
func Internal(format string, args ...any) *InvocationError {
	return &InvocationError{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}
