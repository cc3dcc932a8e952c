package medley

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// IndexWriter implements C6: sorts, dedupes, and publishes the four
// indexes through a SortedStore opened via Opener. Write order within a
// build is unconstrained (spec §4.6); the four publishes fan out over
// goroutines the same way the teacher fans out concurrent UnionFind
// operations in its own tests — a sync.WaitGroup plus a buffered error
// channel, no third-party errgroup.
type IndexWriter struct {
	Opener StoreOpener
}

// NewIndexWriter constructs an IndexWriter backed by opener.
func NewIndexWriter(opener StoreOpener) *IndexWriter {
	return &IndexWriter{Opener: opener}
}

// PublishAll sorts and dedupes lookups/matches (spec I5) and publishes all
// four indexes, in parallel, to the given paths.
func (w *IndexWriter) PublishAll(ctx context.Context, paths IndexPaths, lookups []LookupPair, matches []MatchingPair) error {
	lookups = dedupeLookupPairs(lookups)
	matches = dedupeMatchingPairs(matches)

	jobs := []func() error{
		func() error { return w.writeHash2ID(ctx, paths.Hash2ID, lookups) },
		func() error { return w.writeID2Hash(ctx, paths.ID2Hash, lookups) },
		func() error { return w.writeMatch2ID(ctx, paths.Match2ID, matches) },
		func() error { return w.writeID2Match(ctx, paths.ID2Match, matches) },
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		go func() {
			defer wg.Done()
			errs <- job()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *IndexWriter) writeHash2ID(ctx context.Context, path string, lookups []LookupPair) error {
	s, err := w.Opener.Open(ctx, path, true)
	if err != nil {
		return fmt.Errorf("%w: opening hash2id at %q: %v", ErrIndexIO, path, err)
	}
	defer s.Close()

	for _, p := range lookups {
		if err := s.Put(encodeHash(p.Hash), encodeLookupPair(p)); err != nil {
			return fmt.Errorf("%w: writing hash2id: %v", ErrIndexIO, err)
		}
	}
	if err := s.Publish(ctx); err != nil {
		return fmt.Errorf("%w: publishing hash2id: %v", ErrIndexIO, err)
	}
	return nil
}

func (w *IndexWriter) writeID2Hash(ctx context.Context, path string, lookups []LookupPair) error {
	s, err := w.Opener.Open(ctx, path, true)
	if err != nil {
		return fmt.Errorf("%w: opening id2hash at %q: %v", ErrIndexIO, path, err)
	}
	defer s.Close()

	for _, p := range lookups {
		if err := s.Put(encodeID(p.ID), encodeLookupPair(p)); err != nil {
			return fmt.Errorf("%w: writing id2hash: %v", ErrIndexIO, err)
		}
	}
	if err := s.Publish(ctx); err != nil {
		return fmt.Errorf("%w: publishing id2hash: %v", ErrIndexIO, err)
	}
	return nil
}

func (w *IndexWriter) writeMatch2ID(ctx context.Context, path string, matches []MatchingPair) error {
	s, err := w.Opener.Open(ctx, path, true)
	if err != nil {
		return fmt.Errorf("%w: opening match2id at %q: %v", ErrIndexIO, path, err)
	}
	defer s.Close()

	for _, p := range matches {
		if err := s.Put(encodeMatchingID(p.MatchingID), encodeMatchingPair(p)); err != nil {
			return fmt.Errorf("%w: writing match2id: %v", ErrIndexIO, err)
		}
	}
	if err := s.Publish(ctx); err != nil {
		return fmt.Errorf("%w: publishing match2id: %v", ErrIndexIO, err)
	}
	return nil
}

func (w *IndexWriter) writeID2Match(ctx context.Context, path string, matches []MatchingPair) error {
	s, err := w.Opener.Open(ctx, path, true)
	if err != nil {
		return fmt.Errorf("%w: opening id2match at %q: %v", ErrIndexIO, path, err)
	}
	defer s.Close()

	for _, p := range matches {
		if err := s.Put(encodeID(p.ID), encodeMatchingPair(p)); err != nil {
			return fmt.Errorf("%w: writing id2match: %v", ErrIndexIO, err)
		}
	}
	if err := s.Publish(ctx); err != nil {
		return fmt.Errorf("%w: publishing id2match: %v", ErrIndexIO, err)
	}
	return nil
}

// dedupeLookupPairs sorts by (id, hash) and removes adjacent duplicates —
// spec I5.
func dedupeLookupPairs(pairs []LookupPair) []LookupPair {
	if len(pairs) == 0 {
		return pairs
	}
	sorted := append([]LookupPair(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Hash < sorted[j].Hash
	})

	out := sorted[:1]
	for _, p := range sorted[1:] {
		last := out[len(out)-1]
		if p.ID == last.ID && p.Hash == last.Hash {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupeMatchingPairs sorts by (matchingId, id) and removes adjacent
// duplicates — spec I5.
func dedupeMatchingPairs(pairs []MatchingPair) []MatchingPair {
	if len(pairs) == 0 {
		return pairs
	}
	sorted := append([]MatchingPair(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MatchingID != sorted[j].MatchingID {
			return sorted[i].MatchingID < sorted[j].MatchingID
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := sorted[:1]
	for _, p := range sorted[1:] {
		last := out[len(out)-1]
		if p.MatchingID == last.MatchingID && p.ID == last.ID {
			continue
		}
		out = append(out, p)
	}
	return out
}
