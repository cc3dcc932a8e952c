// Package store provides the badger-backed concrete implementation of
// medley.SortedStore — the on-disk index file container the core engine
// only ever sees through an interface.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wallarm/medley"
)

// currentLinkName is the symlink inside an index root that names the
// published generation. Rows are never visible until this link points at
// them.
const currentLinkName = "current"

// Opener implements medley.StoreOpener over a badger/v4 embedded store
// rooted at a filesystem path. Each publish writes a fresh generation
// directory and atomically repoints currentLinkName at it, so readers
// never observe a partially-written index (spec §5).
type Opener struct {
	Log *zap.Logger
}

// NewOpener constructs an Opener. A nil logger falls back to zap.NewNop.
func NewOpener(logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{Log: logger}
}

// Open implements medley.StoreOpener.
func (o *Opener) Open(ctx context.Context, path string, createIfMissing bool) (medley.SortedStore, error) {
	if createIfMissing {
		return o.openForWrite(path)
	}
	return o.openForRead(path)
}

func (o *Opener) openForWrite(root string) (medley.SortedStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index root %q: %v", medley.ErrIndexIO, root, err)
	}

	generation := "gen-" + uuid.NewString()
	genPath := filepath.Join(root, generation)
	if err := os.MkdirAll(genPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating staging generation %q: %v", medley.ErrIndexIO, genPath, err)
	}

	opts := badger.DefaultOptions(genPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening staging store at %q: %v", medley.ErrIndexIO, genPath, err)
	}

	o.Log.Debug("opened staging index", zap.String("root", root), zap.String("generation", generation))
	return &badgerStore{db: db, root: root, genPath: genPath, log: o.Log}, nil
}

func (o *Opener) openForRead(root string) (medley.SortedStore, error) {
	genPath, err := resolveCurrent(root)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(genPath).WithLogger(nil).WithReadOnly(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening published store at %q: %v", medley.ErrIndexIO, genPath, err)
	}
	return &badgerStore{db: db, root: root, genPath: genPath, log: o.Log, readOnly: true}, nil
}

// resolveCurrent follows the currentLinkName symlink to the published
// generation directory, returning medley.ErrMissingIndex if root has
// never been published.
func resolveCurrent(root string) (string, error) {
	link := filepath.Join(root, currentLinkName)
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("%w: %s", medley.ErrMissingIndex, root)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("%w: %s", medley.ErrMissingIndex, root)
	}
	return target, nil
}

// badgerStore implements medley.SortedStore over one badger/v4 database.
// Composite keys are leadingKey||payload, exactly as medley.SortedStore
// documents, giving set-semantics deduplication for free.
type badgerStore struct {
	mu        sync.Mutex
	db        *badger.DB
	root      string
	genPath   string
	log       *zap.Logger
	readOnly  bool
	published bool
	closed    bool
}

func (s *badgerStore) Put(leadingKey, payload []byte) error {
	if s.readOnly {
		return fmt.Errorf("%w: store at %q is read-only", medley.ErrIndexIO, s.root)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published {
		return fmt.Errorf("%w: write after publish at %q", medley.ErrIndexIO, s.root)
	}

	key := append(append([]byte(nil), leadingKey...), payload...)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: writing to %q: %v", medley.ErrIndexIO, s.root, err)
	}
	return nil
}

func (s *badgerStore) Lookup(leadingKey []byte) ([][]byte, error) {
	var rows [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = leadingKey
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(leadingKey); it.ValidForPrefix(leadingKey); it.Next() {
			key := it.Item().KeyCopy(nil)
			payload := append([]byte(nil), key[len(leadingKey):]...)
			rows = append(rows, payload)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading from %q: %v", medley.ErrIndexIO, s.root, err)
	}
	return rows, nil
}

// Publish closes the underlying badger database (flushing all buffered
// writes) and atomically repoints the root's "current" symlink at this
// generation — the temp-path-then-rename swap named in spec §5.
func (s *badgerStore) Publish(ctx context.Context) error {
	if s.readOnly {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing staging store before publish at %q: %v", medley.ErrIndexIO, s.root, err)
	}
	s.closed = true

	tmpLink := filepath.Join(s.root, "current-"+uuid.NewString())
	if err := os.Symlink(filepath.Base(s.genPath), tmpLink); err != nil {
		return fmt.Errorf("%w: staging publish symlink at %q: %v", medley.ErrIndexIO, s.root, err)
	}

	finalLink := filepath.Join(s.root, currentLinkName)
	if err := os.Rename(tmpLink, finalLink); err != nil {
		_ = os.Remove(tmpLink)
		return fmt.Errorf("%w: renaming publish symlink at %q: %v", medley.ErrIndexIO, s.root, err)
	}

	s.published = true
	s.log.Info("published index generation", zap.String("root", s.root), zap.String("generation", filepath.Base(s.genPath)))
	return nil
}

func (s *badgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing store at %q: %v", medley.ErrIndexIO, s.root, err)
	}
	return nil
}
