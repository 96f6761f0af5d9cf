// Package contentstore uploads rendered certificates to content-addressed
// storage.
package contentstore

import (
	"context"

	"certvault/internal/certificate/models"
)

// Store puts a document and returns its content address.
type Store interface {
	Put(ctx context.Context, doc []byte, name string) (models.ContentAddress, error)
}
