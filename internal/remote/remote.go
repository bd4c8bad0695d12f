// Package remote talks to the user settings endpoint that owns the favorites
// blob. The endpoint is the source of truth the host overwrites wholesale;
// this package only reads and writes it, reconciliation happens elsewhere.
package remote

import (
	"context"
	"time"

	"github.com/Madachii/giffolders/internal/frecency"
)

// Settings is the remote settings collaborator. Implementations map
// transport and codec failures to errs.ErrRemoteUnavailable.
type Settings interface {
	// Fetch reads and decodes the current settings blob.
	Fetch(ctx context.Context) (*frecency.Settings, error)

	// Update performs a read-modify-write: fetch the live blob, apply the
	// mutator, push the result. The delay parameter is an opaque host hint;
	// pass 0 unless the host API changes.
	Update(ctx context.Context, mutate func(*frecency.Settings), delay time.Duration) error
}
