// Package docstore persists the documents attached to an analysis: the
// uploaded source and the rendered report artifacts.
package docstore

import (
	"context"
	"errors"
)

// Store defines operations for persisting analysis documents.
type Store interface {
	Put(ctx context.Context, analysisID, name string, content []byte) error
	Get(ctx context.Context, analysisID, name string) ([]byte, error)
	List(ctx context.Context, analysisID string) ([]string, error)
}

var ErrNotFound = errors.New("document not found")
