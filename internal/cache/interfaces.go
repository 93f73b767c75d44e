package cache

import (
	"context"

	"github.com/uksgomel/uks_checker/internal/repository"
)

// ReadOnlyStore is the minimal cache API for read-only consumers (API, bot).
type ReadOnlyStore interface {
	Snapshot() repository.State
}

// Mutator is applied to a working copy of the state. It reports whether it
// changed anything; only then is the copy persisted.
type Mutator func(st *repository.State) bool

// StateStore is the cache API needed by the change detector.
type StateStore interface {
	ReadOnlyStore
	Update(ctx context.Context, fn Mutator) (repository.State, error)
}

// AppStore is the cache contract the application container exposes.
// It supports the detector, read-only handlers and the repository watcher.
type AppStore interface {
	repository.CacheStore
	StateStore
}
