// Package storage persists materialized artifacts. The filesystem backend
// serves development and tests; the object-store backend serves deployments
// with an S3-compatible service.
package storage

import "context"

// Store is the persistence collaborator for artifact bytes. Write returns
// the canonical storage key; URL resolves a key to something the dashboard
// can fetch.
type Store interface {
	Write(ctx context.Context, key, contentType string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}
