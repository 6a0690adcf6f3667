// Package storage holds binary artifacts (QR ticket images, attraction
// images) outside the database.  Objects are addressed by key and
// exposed to clients by URL.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore stores and removes binary objects.
type ObjectStore interface {
	// Put stores data under key and returns the object's public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Remove deletes the object.  Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// joinURL builds base + "/" + key without doubling slashes.
func joinURL(base, key string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	return base + "/" + key
}
