package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/repository"
)

// Store keeps the in-memory copy of the persisted state and serializes every
// load-modify-store cycle behind a single mutex.
type Store struct {
	mu    sync.Mutex
	data  repository.State
	saver repository.Saver
}

// NewStore creates a store seeded with the state loaded at startup.
func NewStore(st repository.State, saver repository.Saver) (*Store, error) {
	if saver == nil {
		return nil, errors.New("saver is nil")
	}
	return &Store{data: st.Clone(), saver: saver}, nil
}

// Snapshot returns a copy of the cached state.
func (s *Store) Snapshot() repository.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// ReplaceIfUnchanged swaps the cached state for next without persisting it,
// but only while the cache still equals expected. It reports whether the swap
// happened. The watcher uses it so a reload never undoes an Update that
// landed after the reload read the file.
func (s *Store) ReplaceIfUnchanged(expected, next repository.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.data.Equal(expected) {
		return false
	}
	s.data = next.Clone()
	return true
}

// Update runs fn on a working copy and, if fn reports a change, writes the
// copy through to disk before making it the cached state. A failed save leaves
// the cache untouched so the change is retried on the next cycle.
func (s *Store) Update(ctx context.Context, fn Mutator) (repository.State, error) {
	if fn == nil {
		return repository.State{}, errors.New("mutator is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.Clone()
	if !fn(&working) {
		return s.data.Clone(), nil
	}

	if err := s.saver.Save(ctx, &working); err != nil {
		logger.WithComponent("persist").Errorf("persist error: failed to save: %v", err)
		return s.data.Clone(), err
	}

	s.data = working
	logger.WithComponent("persist").Debug("state persisted to disk")
	return s.data.Clone(), nil
}
