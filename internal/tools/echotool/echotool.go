// Package echotool provides the built-in "echo" tool, which returns its
// message parameter unchanged. It exists both as a connectivity probe for
// clients and as the canonical smoke-test tool in this repository's own test
// suites.
package echotool

import (
	"context"

	"github.com/toolrack/toolrack/internal/registry"
	"github.com/toolrack/toolrack/internal/tools"
)

// echoArgs is the decoded input for the "echo" tool.
type echoArgs struct {
	// Message is the text to echo back.
	Message string
}

// decodeArgs extracts echoArgs from the raw argument object.
func decodeArgs(args map[string]any) (echoArgs, *registry.InvocationError) {
	v, ok := args["message"]
	if !ok {
		return echoArgs{}, registry.InvalidParams("missing required field %q", "message")
	}
	msg, ok := v.(string)
	if !ok {
		return echoArgs{}, registry.InvalidParams("field %q must be a string", "message")
	}
	return echoArgs{Message: msg}, nil
}

// Tools returns the echo tool ready for inclusion in the build-time batch.
func Tools[S any]() []tools.Static[S] {
	return []tools.Static[S]{
		{
			Name:        "echo",
			Description: "Returns the given message unchanged.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Text to echo back.",
					},
				},
				"required": []any{"message"},
			},
			Handler: registry.HandlerFunc[S](func(_ context.Context, _ S, args map[string]any) (*registry.Result, error) {
				decoded, invErr := decodeArgs(args)
				if invErr != nil {
					return nil, invErr
				}
				return &registry.Result{Content: decoded.Message}, nil
			}),
		},
	}
}
