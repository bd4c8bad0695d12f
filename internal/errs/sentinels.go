// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across registry/store/scheduler layers.
var (
	// ErrNotFound indicates the requested folder or gif does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a live folder already uses the name.
	ErrDuplicateName = errors.New("duplicate folder name")

	// ErrInvalidName indicates an empty or otherwise unusable folder name.
	ErrInvalidName = errors.New("invalid folder name")

	// ErrProtectedFolder indicates an operation on the reserved default folder.
	ErrProtectedFolder = errors.New("protected folder")

	// ErrFolderNotEmpty indicates deletion of a folder that still holds gifs.
	ErrFolderNotEmpty = errors.New("folder not empty")

	// ErrNoRoom indicates the folder's order range is exhausted.
	ErrNoRoom = errors.New("no room left in folder range")

	// ErrMissingIdentifier indicates a gif without a resolvable URL.
	ErrMissingIdentifier = errors.New("missing gif identifier")

	// ErrMissingIdentity indicates no resolvable user id for storage keys.
	ErrMissingIdentity = errors.New("missing user identity")

	// ErrRemoteUnavailable indicates a transport or codec failure against the
	// remote settings endpoint. Never fatal: callers fall back to the local
	// snapshot and retry on the next scheduled flush.
	ErrRemoteUnavailable = errors.New("remote settings unavailable")
)
