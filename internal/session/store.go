package session

import "time"

// sweepGrace keeps freshly expired records around long enough for an
// in-flight request to observe the expired transition instead of a bare
// not-found. A request racing the wall-clock deadline must always see
// Expired; only after the grace window does the record disappear entirely.
const sweepGrace = time.Minute

// Store is the persistence boundary for session records. Put is a full
// replace, not a partial merge, so concurrent readers cannot produce
// lost-update races on individual fields.
type Store interface {
	// Get returns the stored session or ErrNotFound.
	Get(id string) (*Session, error)
	// Put stores the session, replacing any existing record for the id.
	Put(id string, s *Session) error
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(id string) error
	// Sweep removes all records whose expiry has passed.
	Sweep() error
	// Close releases the underlying resources.
	Close() error
}
