// Package blob holds raw frame bytes. The rest of the system only ever
// sees opaque references into it.
package blob

import (
	"context"
	"errors"
)

var ErrBlobNotFound = errors.New("blob not found")

// Store is the narrow interface consumers depend on.
type Store interface {
	// Put stores bytes and returns an opaque, stable reference.
	Put(ctx context.Context, data []byte, contentType, filename string) (string, error)
	// Get resolves a reference back to bytes. Missing refs return
	// ErrBlobNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)
}
