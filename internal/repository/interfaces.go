package repository

import "context"

// Saver persists a State.
// Small interface used by the state store's write-through path.
type Saver interface {
	Save(ctx context.Context, st *State) error
}

// Repository abstracts persistence and watching of the state file.
// JSONRepository implements this interface.
type Repository interface {
	Saver
	Load(ctx context.Context) (*State, error)
	StartWatcher(ctx context.Context, cacheStore CacheStore) error
	HealthCheck(ctx context.Context) error
	Path() string
}
