package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/uksgomel/uks_checker/internal/logger"
)

// rename is swapped in tests to simulate a crash between temp write and replace.
var rename = os.Rename

// CacheStore defines the interface for cache operations needed by the watcher callback.
type CacheStore interface {
	Snapshot() State
	ReplaceIfUnchanged(expected, next State) bool
}

// JSONRepository handles disk persistence and watching of the state file.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex
}

// NewJSONRepository creates a repository for the given JSON file path.
// It returns the repository interface to avoid leaking implementation details.
func NewJSONRepository(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	return &JSONRepository{path: path, dir: dir, base: base, validator: validator.New()}, nil
}

func (r *JSONRepository) Path() string {
	return r.path
}

// Load reads the state file, parses and validates it.
// A missing file is a first run and yields an empty State.
func (r *JSONRepository) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

// loadUnlocked reads the state file without acquiring the lock (caller must hold it).
func (r *JSONRepository) loadUnlocked() (*State, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	st, err := decodeState(file)
	if err != nil {
		return nil, err
	}

	if err := r.validator.Struct(st); err != nil {
		return nil, fmt.Errorf("validate state file: %w", err)
	}

	return st, nil
}

func decodeState(rd io.Reader) (*State, error) {
	decoder := json.NewDecoder(rd)
	var st State
	if err := decoder.Decode(&st); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return &st, nil
}

// Save validates and writes the state atomically to disk.
func (r *JSONRepository) Save(ctx context.Context, st *State) error {
	if st == nil {
		return errors.New("state is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.validator.Struct(st); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveUnlocked(st)
}

// saveUnlocked writes the state without acquiring the lock (caller must hold it).
// The payload goes to a temp file in the same directory which is synced and then
// renamed over the target, so readers see either the old or the new file.
func (r *JSONRepository) saveUnlocked(st *State) error {
	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	payload = append(payload, '\n')

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// HealthCheck verifies the state directory is writable and, when the state
// file exists, that it holds valid JSON.
func (r *JSONRepository) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := os.CreateTemp(r.dir, r.base+".healthcheck-")
	if err != nil {
		return fmt.Errorf("state directory not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	r.mu.Lock()
	data, err := os.ReadFile(r.path)
	r.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}
	if _, err := decodeState(bytes.NewReader(data)); err != nil {
		return err
	}
	return nil
}

// StartWatcher listens for changes to the state file and reloads the cache after debounce.
// It watches the parent directory (not the file) so atomic replace sequences (temp+rename)
// are still observed. Events are filtered by basename and debounced to avoid double
// reloads on write+chmod/rename cycles. The caller owns the provided context: cancel it
// to stop the goroutine and close the watcher cleanly.
func (r *JSONRepository) StartWatcher(ctx context.Context, cacheStore CacheStore) error {
	if cacheStore == nil {
		return errors.New("cache store is required")
	}
	onChange := r.MakeWatcherCallback(cacheStore)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, onChange)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != r.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("json-repo").Warnf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// MakeWatcherCallback returns a callback for the file watcher that copies an
// externally edited state file into the cache. Our own writes reload content
// identical to the cache and are skipped. The cache is read before the file,
// and the swap only happens if the cache did not move in between.
func (r *JSONRepository) MakeWatcherCallback(cacheStore CacheStore) func() {
	return func() {
		cached := cacheStore.Snapshot()

		diskState, err := r.Load(context.Background())
		if err != nil {
			logger.WithComponent("json-repo").Warnf("watch reload failed: %v", err)
			return
		}

		if cached.Equal(*diskState) {
			logger.WithComponent("json-repo").Trace("state file matches cache, skipping reload")
			return
		}

		if !cacheStore.ReplaceIfUnchanged(cached, *diskState) {
			logger.WithComponent("json-repo").Debug("state changed during reload, keeping cache")
			return
		}
		logger.WithComponent("json-repo").Info("state reloaded from externally modified file")
	}
}
