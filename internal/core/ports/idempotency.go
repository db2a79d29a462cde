package ports

import "context"

// IdempotencyStore remembers which project a create request key produced.
type IdempotencyStore interface {
	// Lookup returns the project id recorded for key, if any.
	Lookup(ctx context.Context, key string) (id uint64, found bool, err error)
	// Remember records key → id. It reports false when the key was already taken.
	Remember(ctx context.Context, key string, id uint64) (bool, error)
}
