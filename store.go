package medley

import "context"

// SortedStore is the abstract on-disk index file container named in spec
// §1 as an external collaborator: "any sorted key/value store supporting
// exact and range lookup on the leading key." The core engine (C6/C7)
// depends only on this interface — never on a concrete storage engine —
// so the badger-backed adapter in the sibling store package is
// infrastructure, not core.
//
// Rows are stored as leadingKey||payload composite keys with no separate
// value; Lookup does a prefix scan over leadingKey and strips it back off
// each matching key to recover the payload. This gives natural
// deduplication of identical (leadingKey, payload) tuples (spec I5) for
// free, since the underlying store treats keys as a set.
type SortedStore interface {
	// Put stores one row under leadingKey with the given payload. Writes
	// are buffered until Publish; a Put after Publish is an error.
	Put(leadingKey, payload []byte) error

	// Lookup returns every payload stored under exactly this leading key,
	// in unspecified order. Returns (nil, nil) if the key is absent.
	Lookup(leadingKey []byte) ([][]byte, error)

	// Publish atomically makes all buffered writes visible to readers
	// (temp-path-then-rename semantics at the implementation layer) and
	// forbids further writes through this handle.
	Publish(ctx context.Context) error

	// Close releases underlying resources. Safe to call after Publish.
	Close() error
}

// StoreOpener opens or creates a SortedStore rooted at path.
//
// When createIfMissing is true (the build/write path), the opener creates a
// fresh staging area at path if none is published yet. When false (the
// query/read path), the opener must return ErrMissingIndex if path has no
// published store — spec §7's MissingIndex: "a query references a path
// that does not exist; immediate failure."
type StoreOpener interface {
	Open(ctx context.Context, path string, createIfMissing bool) (SortedStore, error)
}

// IndexName identifies one of the four published indexes.
type IndexName string

const (
	IndexHash2ID  IndexName = "hash2id"
	IndexID2Hash  IndexName = "id2hash"
	IndexMatch2ID IndexName = "match2id"
	IndexID2Match IndexName = "id2match"
)

// IndexPaths names the on-disk location of each of the four indexes,
// exactly the "paths at which to publish indexes" spec §1 says the core is
// invoked with.
type IndexPaths struct {
	Hash2ID  string
	ID2Hash  string
	Match2ID string
	ID2Match string
}

// Path returns the configured path for the named index.
func (p IndexPaths) Path(name IndexName) string {
	switch name {
	case IndexHash2ID:
		return p.Hash2ID
	case IndexID2Hash:
		return p.ID2Hash
	case IndexMatch2ID:
		return p.Match2ID
	case IndexID2Match:
		return p.ID2Match
	default:
		return ""
	}
}

// All returns the four (name, path) entries in a fixed order, used
// wherever the engine needs to iterate the whole index set.
func (p IndexPaths) All() []struct {
	Name IndexName
	Path string
} {
	return []struct {
		Name IndexName
		Path string
	}{
		{IndexHash2ID, p.Hash2ID},
		{IndexID2Hash, p.ID2Hash},
		{IndexMatch2ID, p.Match2ID},
		{IndexID2Match, p.ID2Match},
	}
}
