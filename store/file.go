package store

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/logging"
)

// fileDoc is the TOML shape of the store file:
//
//	[ports.eth0]
//	lacp = "active"
//	rate = "fast"
//	aggregate = "lag0"
type fileDoc struct {
	Ports map[string]Port `toml:"ports"`
}

// FileStore implements Store over a TOML file watched for edits.
//
// The watcher goroutine folds file writes into the cache and emits one
// Change per differing port record. A file that fails to parse leaves the
// cache at its last good contents; Run retries the reload each worker
// iteration until the file parses again.
type FileStore struct {
	path    string
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	ports    map[string]Port
	revision uint64
	loadErr  error

	changes chan Change
	closed  atomic.Bool
	done    chan struct{}
	exited  chan struct{}
}

// NewFileStore opens the store file and starts watching it.
// A missing file is treated as an empty configuration.
func NewFileStore(path string, logger *logging.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeStoreUnavailable, "create file watcher")
	}

	// Watch the directory, not the file: editors and config management
	// tools replace files, which drops a file-level watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.WrapWithCode(err, errors.CodeStoreUnavailable, "watch store directory")
	}

	s := &FileStore{
		path:    filepath.Clean(path),
		logger:  logger,
		watcher: watcher,
		ports:   make(map[string]Port),
		changes: make(chan Change, changeBuffer),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	if err := s.reload(); err != nil {
		s.logger.StoreError("load", err)
	}

	go s.watchLoop()
	return s, nil
}

// watchLoop folds file-system events into the cache.
func (s *FileStore) watchLoop() {
	defer close(s.exited)

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.StoreError("reload", err)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.StoreError("watch", err)
		}
	}
}

// reload re-decodes the file and emits a Change per differing record.
func (s *FileStore) reload() error {
	var doc fileDoc
	if _, err := toml.DecodeFile(s.path, &doc); err != nil {
		if os.IsNotExist(err) {
			// Missing file: empty configuration, not an error.
			doc.Ports = nil
		} else {
			werr := errors.WrapWithCode(err, errors.CodeStoreUnavailable, "decode store file")
			s.mu.Lock()
			s.loadErr = werr
			s.mu.Unlock()
			return werr
		}
	}

	next := make(map[string]Port, len(doc.Ports))
	for key, port := range doc.Ports {
		if port.Name == "" {
			port.Name = key
		}
		next[key] = port
	}

	s.mu.Lock()
	var pending []Change

	for key, port := range next {
		old, ok := s.ports[key]
		if ok && old == port {
			continue
		}
		s.revision++
		p := port
		pending = append(pending, Change{Key: key, Port: &p, Operation: OpPut, Revision: s.revision})
	}
	for key := range s.ports {
		if _, ok := next[key]; !ok {
			s.revision++
			pending = append(pending, Change{Key: key, Operation: OpDelete, Revision: s.revision})
		}
	}

	s.ports = next
	s.loadErr = nil

	// Emit before releasing the lock so revisions land on the feed in
	// order even when the watcher and a Run call reload concurrently.
	for _, c := range pending {
		if s.closed.Load() {
			break
		}
		select {
		case s.changes <- c:
		default:
			// Feed full; consumer recovers via Snapshot.
		}
	}
	s.mu.Unlock()
	return nil
}

// Run retries a failed reload. Called once per worker iteration.
func (s *FileStore) Run() error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.RLock()
	pending := s.loadErr
	s.mu.RUnlock()

	if pending == nil {
		return nil
	}
	return s.reload()
}

// Snapshot returns a copy of the current cache.
func (s *FileStore) Snapshot() map[string]Port {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Port, len(s.ports))
	for k, v := range s.ports {
		out[k] = v
	}
	return out
}

// Changes returns the change feed.
func (s *FileStore) Changes() <-chan Change {
	return s.changes
}

// Close stops the watcher and closes the change feed. Idempotent.
// Close must not race a Run call; the worker owns both and sequences them.
func (s *FileStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	<-s.exited
	close(s.changes)
	return err
}
