// Package store persists registry tables as opaque named blobs.
//
// Error Contract:
// - Load returns only the names that exist; a missing table is not an error
// - Save replaces the blob stored under name
// - Infrastructure failures are returned wrapped with context
package store

import "context"

// Persister is the durable key/value boundary of the registry. Implementations
// must be safe for concurrent use and Save must be atomic per name.
type Persister interface {
	Load(ctx context.Context, names []string) (map[string][]byte, error)
	Save(ctx context.Context, name string, blob []byte) error
}
