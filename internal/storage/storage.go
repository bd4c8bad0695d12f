// Package storage defines the key-value persistence boundary implemented by
// concrete backends.
package storage

import (
	"context"
	"fmt"

	"github.com/Madachii/giffolders/internal/errs"
)

// KV is an asynchronous key-value store holding full serialized snapshots.
// Values are JSON documents; a missing key is not an error.
type KV interface {
	// Get returns the value stored under key, with ok=false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

const namespace = "GifFolders"

// FoldersKey returns the per-user key holding the folder registry snapshot.
func FoldersKey(userID string) (string, error) {
	return scopedKey("folders", userID)
}

// GifsKey returns the per-user key holding the gif collection snapshot.
func GifsKey(userID string) (string, error) {
	return scopedKey("gifs", userID)
}

func scopedKey(kind, userID string) (string, error) {
	if userID == "" {
		return "", errs.ErrMissingIdentity
	}
	return fmt.Sprintf("%s:%s:%s", namespace, kind, userID), nil
}
