// Package server hosts the tool dispatch registry behind the concurrency
// guard the registry itself deliberately lacks, and bridges it to the MCP
// wire protocol via the official Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// The [Service] is the single owner of the registry: reads (listing, the
// resolve step of a call) take a shared lock, mutations (register,
// unregister) take the exclusive lock, and handler execution happens outside
// any lock so a slow tool never blocks registration. Readers observe the
// registry strictly before or strictly after a mutation, never in between.
//
// Typical usage:
//
//	svc, err := server.New("toolrack", seed, nil)
//	...
//	err = svc.Run(ctx, config.TransportStdio, "")
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/toolrack/toolrack/internal/config"
	"github.com/toolrack/toolrack/internal/observe"
	"github.com/toolrack/toolrack/internal/registry"
)

// Options tunes optional Service behaviour. The zero value is usable.
type Options struct {
	// Version is reported in the MCP handshake. Defaults to "dev".
	Version string

	// Metrics receives dispatch and registry instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Service owns the dispatch registry and serves it over MCP. It is the
// service context every handler receives, so tools can introspect the host
// they run in.
//
// All exported methods are safe for concurrent use.
type Service struct {
	name      string
	version   string
	startedAt time.Time
	metrics   *observe.Metrics

	// mu guards reg. The registry is not internally synchronized; every
	// access goes through this lock, and handlers run outside it.
	mu  sync.RWMutex
	reg *registry.Registry[*Service]

	srv *mcpsdk.Server
}

// New creates a Service seeded with the given build-time batch and mirrors
// the batch into the MCP server. Seeding fails if the batch repeats a name.
func New(name string, seed []registry.Entry[*Service], opts *Options) (*Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	reg, err := registry.New(seed...)
	if err != nil {
		return nil, fmt.Errorf("server: seeding registry: %w", err)
	}

	s := &Service{
		name:      name,
		version:   version,
		startedAt: time.Now(),
		metrics:   metrics,
		reg:       reg,
	}
	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)

	for _, summary := range reg.List() {
		if err := s.mirrorTool(summary); err != nil {
			return nil, err
		}
		metrics.RegistrySize.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("origin", registry.OriginBuildTime.String())))
	}
	return s, nil
}

// Uptime returns the time elapsed since the Service was created.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// CountTools returns the number of registered tools per origin.
func (s *Service) CountTools() (buildTime, runtime int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.CountByOrigin(registry.OriginBuildTime), s.reg.CountByOrigin(registry.OriginRuntime)
}

// HasTool reports whether a tool with the given name is registered.
func (s *Service) HasTool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Contains(name)
}

// ListTools returns a snapshot of all registered tools in insertion order.
func (s *Service) ListTools() []registry.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.List()
}

// RegisterTool adds a runtime tool to the registry and mirrors it into the
// MCP server, making it visible to connected sessions. Registration is
// atomic with respect to concurrent calls; the registry's own preconditions
// (non-empty name, object schema, unique name) apply.
func (s *Service) RegisterTool(name, description string, schema any, handler registry.Handler[*Service]) error {
	s.mu.Lock()
	err := s.reg.Register(name, description, schema, handler)
	var summary registry.Summary
	if err == nil {
		e, _ := s.reg.Lookup(name)
		summary = registry.Summary{Name: e.Name(), Description: e.Description(), Schema: e.Schema()}
	}
	s.mu.Unlock()

	ctx := context.Background()
	if err != nil {
		s.metrics.Registrations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", registrationStatus(err))))
		return err
	}

	if err := s.mirrorTool(summary); err != nil {
		// The registry accepted the tool but the SDK rejected its schema.
		// Roll back so registry and wire surface stay consistent.
		s.mu.Lock()
		_ = s.reg.Unregister(name)
		s.mu.Unlock()
		s.metrics.Registrations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "mirror_failed")))
		return err
	}

	s.metrics.Registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	s.metrics.RegistrySize.Add(ctx, 1,
		metric.WithAttributes(attribute.String("origin", registry.OriginRuntime.String())))
	return nil
}

// UnregisterTool removes a runtime tool and withdraws it from the MCP
// server. Build-time tools cannot be removed; the registry reports them as
// not found, indistinguishable from absent names.
func (s *Service) UnregisterTool(name string) error {
	s.mu.Lock()
	err := s.reg.Unregister(name)
	s.mu.Unlock()

	ctx := context.Background()
	if err != nil {
		s.metrics.Unregistrations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "not_found")))
		return err
	}

	s.srv.RemoveTools(name)
	s.metrics.Unregistrations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	s.metrics.RegistrySize.Add(ctx, -1,
		metric.WithAttributes(attribute.String("origin", registry.OriginRuntime.String())))
	return nil
}

// CallTool dispatches the named tool with the given arguments. The resolve
// step runs under the shared lock; the handler itself runs outside any lock,
// so an invocation in flight is unaffected by later registry mutation.
func (s *Service) CallTool(ctx context.Context, name string, args map[string]any) (*registry.Result, error) {
	ctx, span := observe.StartSpan(ctx, "toolrack.dispatch",
		trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	start := time.Now()

	s.mu.RLock()
	entry, err := registry.Resolve(s.reg, name)
	s.mu.RUnlock()

	if err != nil {
		s.metrics.RecordDispatch(ctx, name, "unknown_tool", time.Since(start))
		return nil, err
	}

	res, err := registry.Invoke(ctx, entry, s, args)
	if err != nil {
		observe.Logger(ctx).Warn("tool dispatch failed", "tool", name, "error", err)
		s.metrics.RecordDispatch(ctx, name, "handler_failed", time.Since(start))
		return nil, err
	}
	s.metrics.RecordDispatch(ctx, name, "ok", time.Since(start))
	return res, nil
}

// Run serves the MCP protocol until ctx is done. For [config.TransportStdio]
// a single session is served over stdin/stdout; for
// [config.TransportStreamableHTTP] an HTTP server listens on addr.
func (s *Service) Run(ctx context.Context, transport config.Transport, addr string) error {
	switch transport {
	case config.TransportStdio:
		return s.srv.Run(ctx, &mcpsdk.StdioTransport{})

	case config.TransportStreamableHTTP:
		handler := mcpsdk.NewStreamableHTTPHandler(
			func(*http.Request) *mcpsdk.Server { return s.srv }, nil)
		httpSrv := &http.Server{Addr: addr, Handler: handler}

		errCh := make(chan error, 1)
		go func() { errCh <- httpSrv.ListenAndServe() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
			return ctx.Err()
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server: streamable-http listener: %w", err)
		}

	default:
		return fmt.Errorf("server: unknown transport %q", transport)
	}
}

// mirrorTool publishes one registry entry on the MCP server. The closure
// routes protocol calls back through [Service.CallTool] so every invocation
// path — in-process or wire — shares the same dispatch logic.
func (s *Service) mirrorTool(summary registry.Summary) error {
	schema, err := toSDKSchema(summary.Schema)
	if err != nil {
		return fmt.Errorf("server: schema for tool %q: %w", summary.Name, err)
	}

	name := summary.Name
	s.srv.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: summary.Description,
		InputSchema: schema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args, err := argsAsMap(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		res, err := s.CallTool(ctx, name, args)
		if err != nil {
			// Handler-domain failures become tool-level error results so
			// the client sees kind and message; anything else (unknown tool
			// after a concurrent unregister) is a protocol error.
			var inv *registry.InvocationError
			if errors.As(err, &inv) {
				return &mcpsdk.CallToolResult{
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: inv.Error()}},
					IsError: true,
				}, nil
			}
			return nil, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
		}, nil
	})
	return nil
}

// registrationStatus maps a registration error to a metrics status label.
func registrationStatus(err error) string {
	var regErr *registry.RegistrationError
	if !errors.As(err, &regErr) {
		return "error"
	}
	switch regErr.Kind {
	case registry.KindDuplicateTool:
		return "duplicate_tool"
	case registry.KindInvalidName:
		return "invalid_name"
	case registry.KindInvalidSchema:
		return "invalid_schema"
	default:
		return "error"
	}
}

// toSDKSchema converts the registry's opaque schema document into the SDK's
// schema type via a JSON round trip.
func toSDKSchema(doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// argsAsMap normalises the SDK's argument payload into the map handlers
// expect. The SDK may deliver a decoded map or raw JSON depending on the
// transport.
func argsAsMap(v any) (map[string]any, error) {
	switch args := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return args, nil
	case json.RawMessage:
		if len(args) == 0 {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal(args, &m); err != nil {
			return nil, fmt.Errorf("server: decoding arguments: %w", err)
		}
		return m, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("server: arguments are not an object: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("server: arguments are not an object: %w", err)
		}
		return m, nil
	}
}
