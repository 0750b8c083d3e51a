// Package randtool provides the built-in "rand_int" tool, which returns a
// uniformly distributed integer from an inclusive range.
//
// Randomness uses [math/rand/v2] with the per-process automatically-seeded
// source; the handler is safe for concurrent use.
package randtool

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"

	"github.com/toolrack/toolrack/internal/registry"
	"github.com/toolrack/toolrack/internal/tools"
)

// randArgs is the decoded input for the "rand_int" tool.
type randArgs struct {
	// Min is the inclusive lower bound.
	Min int64

	// Max is the inclusive upper bound. Must be ≥ Min.
	Max int64
}

// randResult is the JSON-encoded output of the "rand_int" tool.
type randResult struct {
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
	Value int64 `json:"value"`
}

// decodeArgs extracts and validates randArgs from the raw argument object.
func decodeArgs(args map[string]any) (randArgs, *registry.InvocationError) {
	min, invErr := intField(args, "min")
	if invErr != nil {
		return randArgs{}, invErr
	}
	max, invErr := intField(args, "max")
	if invErr != nil {
		return randArgs{}, invErr
	}
	if max < min {
		return randArgs{}, registry.InvalidParams("max (%d) must be >= min (%d)", max, min)
	}
	return randArgs{Min: min, Max: max}, nil
}

// intField reads an integer-valued field. JSON decoding delivers numbers as
// float64, so both forms are accepted.
func intField(args map[string]any, key string) (int64, *registry.InvocationError) {
	v, ok := args[key]
	if !ok {
		return 0, registry.InvalidParams("missing required field %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, registry.InvalidParams("field %q must be an integer", key)
		}
		return i, nil
	}
	return 0, registry.InvalidParams("field %q must be an integer", key)
}

// draw returns a uniformly random value in [min, max]. The width max-min can
// exceed MaxInt64 for extreme ranges, so the offset is drawn over a uint64
// span; unsigned subtraction yields the correct width for any min <= max, and
// the signed addition at the end wraps back into range.
func draw(min, max int64) int64 {
	span := uint64(max) - uint64(min)
	if span == math.MaxUint64 {
		return int64(rand.Uint64())
	}
	return min + int64(rand.Uint64N(span+1))
}

// Tools returns the rand_int tool ready for inclusion in the build-time batch.
func Tools[S any]() []tools.Static[S] {
	return []tools.Static[S]{
		{
			Name:        "rand_int",
			Description: "Returns a uniformly random integer in the inclusive range [min, max].",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"min": map[string]any{"type": "integer", "description": "Inclusive lower bound."},
					"max": map[string]any{"type": "integer", "description": "Inclusive upper bound."},
				},
				"required": []any{"min", "max"},
			},
			Handler: registry.HandlerFunc[S](func(_ context.Context, _ S, args map[string]any) (*registry.Result, error) {
				decoded, invErr := decodeArgs(args)
				if invErr != nil {
					return nil, invErr
				}
				value := draw(decoded.Min, decoded.Max)
				data, err := json.Marshal(randResult{Min: decoded.Min, Max: decoded.Max, Value: value})
				if err != nil {
					return nil, registry.Internal("encode result: %v", err)
				}
				return &registry.Result{Content: string(data)}, nil
			}),
		},
	}
}
