package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

// LLMClient is the opaque model-invocation collaborator: prompt and input in,
// JSON out. Cross-cutting concerns (retries, rate limiting, logging) are
// applied via Middleware, not inside implementations.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

var ErrInvalidJSON = errors.New("invalid json from LLM")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

type stageKey struct{}

// WithStage tags the context with the pipeline stage issuing the call, for
// logging and for the fake client's per-stage canned outputs.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage tag or "" when none is set.
func StageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return ""
}
