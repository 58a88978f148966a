package ledger

import (
	"context"
	"errors"
)

// Version is the opaque token a store hands out with a read. A conditional
// write succeeds only while the store's current version still matches.
type Version string

// ErrVersionConflict means someone else committed between our read and
// write. Recoverable: re-read, re-apply, retry.
var ErrVersionConflict = errors.New("ledger: version conflict")

// Store is the versioned-read / conditional-write contract over the shared
// ledger. Concurrency across processes is mediated entirely by this token;
// there are no locks.
type Store interface {
	// Read returns the current ledger content and its version token. A
	// store with no content yet returns an empty snapshot and a version
	// that a subsequent ConditionalWrite will accept.
	Read(ctx context.Context) (Snapshot, Version, error)

	// ConditionalWrite replaces the ledger content iff expected still
	// matches the store's current version, returning the new version.
	// Returns ErrVersionConflict otherwise.
	ConditionalWrite(ctx context.Context, s Snapshot, expected Version) (Version, error)
}
