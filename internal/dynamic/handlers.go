package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/toolrack/toolrack/internal/registry"
	"github.com/toolrack/toolrack/internal/resilience"
)

// buildHandler constructs the invocation target for a definition. The
// returned handler closes over the store's database handle where the kind
// needs one; construction fails for unknown kinds and malformed specs so a
// broken definition never reaches the registry.
func buildHandler[S any](store *Store, def Definition) (registry.Handler[S], error) {
	switch def.Kind {
	case KindTemplate:
		return templateHandler[S](def)
	case KindQuery:
		return queryHandler[S](store.db, def)
	default:
		return nil, fmt.Errorf("dynamic: definition %q has unknown kind %q", def.Name, def.Kind)
	}
}

// templateHandler renders spec.template against the call arguments.
// Referencing an argument the caller did not supply is an invalid-params
// failure, enforced via the template engine's missingkey option.
func templateHandler[S any](def Definition) (registry.Handler[S], error) {
	text, ok := def.Spec["template"].(string)
	if !ok || text == "" {
		return nil, fmt.Errorf("dynamic: definition %q needs a non-empty spec.template string", def.Name)
	}
	tmpl, err := template.New(def.Name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("dynamic: definition %q has a malformed template: %w", def.Name, err)
	}

	return registry.HandlerFunc[S](func(_ context.Context, _ S, args map[string]any) (*registry.Result, error) {
		if args == nil {
			args = map[string]any{}
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, args); err != nil {
			return nil, registry.InvalidParams("rendering %q: %v", def.Name, err)
		}
		return &registry.Result{Content: sb.String()}, nil
	}), nil
}

// queryHandler executes spec.query with positional bindings taken from the
// call arguments in spec.params order. Rows come back as a JSON array of
// column-name to value objects. A per-tool circuit breaker sheds load while
// the database is down.
func queryHandler[S any](db DB, def Definition) (registry.Handler[S], error) {
	query, ok := def.Spec["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("dynamic: definition %q needs a non-empty spec.query string", def.Name)
	}
	params, err := paramNames(def)
	if err != nil {
		return nil, err
	}
	breaker := resilience.New("tool:" + def.Name)

	return registry.HandlerFunc[S](func(ctx context.Context, _ S, args map[string]any) (*registry.Result, error) {
		bindings := make([]any, 0, len(params))
		for _, p := range params {
			v, ok := args[p]
			if !ok {
				return nil, registry.InvalidParams("missing required field %q", p)
			}
			bindings = append(bindings, v)
		}

		var content string
		err := breaker.Do(func() error {
			rows, err := db.Query(ctx, query, bindings...)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			defer rows.Close()

			fields := rows.FieldDescriptions()
			out := make([]map[string]any, 0)
			for rows.Next() {
				values, err := rows.Values()
				if err != nil {
					return fmt.Errorf("reading row: %w", err)
				}
				record := make(map[string]any, len(values))
				for i, v := range values {
					record[string(fields[i].Name)] = v
				}
				out = append(out, record)
			}
			if err := rows.Err(); err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			data, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("encoding rows: %w", err)
			}
			content = string(data)
			return nil
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, registry.Internal("%q backend unavailable", def.Name)
		}
		if err != nil {
			return nil, registry.Internal("%q: %v", def.Name, err)
		}
		return &registry.Result{Content: content}, nil
	}), nil
}

// paramNames extracts the ordered argument field names from spec.params.
func paramNames(def Definition) ([]string, error) {
	raw, ok := def.Spec["params"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("dynamic: definition %q spec.params must be an array of strings", def.Name)
	}
	names := make([]string, 0, len(list))
	for _, v := range list {
		name, ok := v.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("dynamic: definition %q spec.params must be an array of non-empty strings", def.Name)
		}
		names = append(names, name)
	}
	return names, nil
}
