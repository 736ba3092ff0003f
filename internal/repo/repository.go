package repo

import "context"

// Ledger is the port for completion tracking — swap in any backing store.
// A source enters the ledger only once every destination in the run's set has
// a terminal outcome; entries are never removed.
type Ledger interface {
	// Load reads the persisted set. Called once at scheduler startup.
	Load(ctx context.Context) (map[string]struct{}, error)

	// IsComplete reports whether the source was fully checked, in this run
	// or a prior one.
	IsComplete(source string) bool

	// MarkComplete records the source. Idempotent; durable before returning.
	MarkComplete(ctx context.Context, source string) error
}
