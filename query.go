package medley

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RelatedByID is one (givenId, id) row returned by FindRelatedByIds — the
// probe id paired with a related id discovered through the index chain.
type RelatedByID struct {
	GivenID ID
	ID      ID
}

// QueryReport accumulates non-fatal warnings raised while answering a
// query: IndexLookupOverflow is recorded as a warning rather than a
// failure (spec §7).
type QueryReport struct {
	Overflows []IndexLookupOverflow
}

// QueryEngine implements C7: answers Q1/Q2 lookups against a published
// set of indexes, opened once per query and cached for its duration.
//
// Per-key fanout lookups are cached the same way the teacher's
// SessionGenerator caches resolved session keys: one LRU shared by all
// indexes, keyed by index name plus leading key, valued by the raw payload
// rows of that lookup, sized by EngineConfig.QueryCacheSize.
type QueryEngine struct {
	Opener      StoreOpener
	FanoutLimit int
	cache       *lru.Cache[string, [][]byte]
}

// NewQueryEngine constructs a QueryEngine. cacheSize <= 0 disables caching
// (every lookup falls through to the store); fanoutLimit <= 0 disables
// overflow warnings.
func NewQueryEngine(opener StoreOpener, cacheSize, fanoutLimit int) (*QueryEngine, error) {
	qe := &QueryEngine{Opener: opener, FanoutLimit: fanoutLimit}
	if cacheSize > 0 {
		c, err := lru.New[string, [][]byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("medley: failed to create query cache: %w", err)
		}
		qe.cache = c
	}
	return qe, nil
}

// openIndexes opens every published index under paths for read-only
// access, returning ErrMissingIndex if any one of them has never been
// published.
func (qe *QueryEngine) openIndexes(ctx context.Context, paths IndexPaths) (map[IndexName]SortedStore, error) {
	stores := make(map[IndexName]SortedStore, 4)
	for _, entry := range paths.All() {
		s, err := qe.Opener.Open(ctx, entry.Path, false)
		if err != nil {
			qe.closeAll(stores)
			return nil, err
		}
		stores[entry.Name] = s
	}
	return stores, nil
}

func (qe *QueryEngine) closeAll(stores map[IndexName]SortedStore) {
	for _, s := range stores {
		_ = s.Close()
	}
}

// lookup reads every payload under leadingKey in index, through the
// cache when enabled, recording an IndexLookupOverflow warning on report
// if the fanout exceeds FanoutLimit.
func (qe *QueryEngine) lookup(s SortedStore, indexName string, leadingKey []byte, report *QueryReport) ([][]byte, error) {
	cacheKey := indexName + ":" + string(leadingKey)
	if qe.cache != nil {
		if v, ok := qe.cache.Get(cacheKey); ok {
			return v, nil
		}
	}

	rows, err := s.Lookup(leadingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up %s: %v", ErrIndexIO, indexName, err)
	}

	if qe.FanoutLimit > 0 && len(rows) > qe.FanoutLimit {
		report.Overflows = append(report.Overflows, IndexLookupOverflow{
			Key:    fmt.Sprintf("%x", leadingKey),
			Index:  indexName,
			Fanout: len(rows),
			Limit:  qe.FanoutLimit,
		})
	}

	if qe.cache != nil {
		qe.cache.Add(cacheKey, rows)
	}
	return rows, nil
}

// FindRelatedByIds implements Q1 (spec §4.7): for each input id, walk
// ID2Hash -> Hash2ID -> ID2Match -> Match2ID and return the deduped
// (givenId, id) pairs discovered along the way.
func (qe *QueryEngine) FindRelatedByIds(ctx context.Context, ids []ID, paths IndexPaths) ([]RelatedByID, QueryReport, error) {
	stores, err := qe.openIndexes(ctx, paths)
	if err != nil {
		return nil, QueryReport{}, err
	}
	defer qe.closeAll(stores)

	var report QueryReport
	var out []RelatedByID

	for _, given := range ids {
		seen := map[ID]struct{}{given: {}}
		out = append(out, RelatedByID{GivenID: given, ID: given})

		hashRows, err := qe.lookup(stores[IndexID2Hash], "id2hash", encodeID(given), &report)
		if err != nil {
			return nil, report, err
		}

		candidates := map[ID]struct{}{}
		for _, row := range hashRows {
			pair, err := decodeLookupPair(row)
			if err != nil {
				return nil, report, fmt.Errorf("%w: decoding id2hash row: %v", ErrIndexIO, err)
			}
			idRows, err := qe.lookup(stores[IndexHash2ID], "hash2id", encodeHash(pair.Hash), &report)
			if err != nil {
				return nil, report, err
			}
			for _, idRow := range idRows {
				p, err := decodeLookupPair(idRow)
				if err != nil {
					return nil, report, fmt.Errorf("%w: decoding hash2id row: %v", ErrIndexIO, err)
				}
				candidates[p.ID] = struct{}{}
			}
		}

		matchingIDs := map[MatchingID]struct{}{}
		for c := range candidates {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				out = append(out, RelatedByID{GivenID: given, ID: c})
			}
			matchRows, err := qe.lookup(stores[IndexID2Match], "id2match", encodeID(c), &report)
			if err != nil {
				return nil, report, err
			}
			for _, row := range matchRows {
				p, err := decodeMatchingPair(row)
				if err != nil {
					return nil, report, fmt.Errorf("%w: decoding id2match row: %v", ErrIndexIO, err)
				}
				matchingIDs[p.MatchingID] = struct{}{}
			}
		}

		for mid := range matchingIDs {
			finalRows, err := qe.lookup(stores[IndexMatch2ID], "match2id", encodeMatchingID(mid), &report)
			if err != nil {
				return nil, report, err
			}
			for _, row := range finalRows {
				p, err := decodeMatchingPair(row)
				if err != nil {
					return nil, report, fmt.Errorf("%w: decoding match2id row: %v", ErrIndexIO, err)
				}
				if _, dup := seen[p.ID]; dup {
					continue
				}
				seen[p.ID] = struct{}{}
				out = append(out, RelatedByID{GivenID: given, ID: p.ID})
			}
		}
	}

	return out, report, nil
}

// FindRelatedByExample implements Q2 (spec §4.7): project exampleRecords
// through the same C4 pipeline used at build time, probe Hash2ID with the
// resulting fingerprints, then resolve through ID2Match/Match2ID to the
// final deduped id set. Callers typically pass editDistance=0 to avoid
// over-fuzzing at query time.
func (qe *QueryEngine) FindRelatedByExample(ctx context.Context, examples []SourceRecord, plan Plan, editDistance int, paths IndexPaths) ([]ID, QueryReport, error) {
	stores, err := qe.openIndexes(ctx, paths)
	if err != nil {
		return nil, QueryReport{}, err
	}
	defer qe.closeAll(stores)

	var report QueryReport
	seenIDs := map[ID]struct{}{}
	seenMatch := map[MatchingID]struct{}{}
	var out []ID

	for _, ex := range examples {
		for _, lp := range HashRecord(ex, plan, editDistance) {
			rows, err := qe.lookup(stores[IndexHash2ID], "hash2id", encodeHash(lp.Hash), &report)
			if err != nil {
				return nil, report, err
			}
			for _, row := range rows {
				p, err := decodeLookupPair(row)
				if err != nil {
					return nil, report, fmt.Errorf("%w: decoding hash2id row: %v", ErrIndexIO, err)
				}
				matchRows, err := qe.lookup(stores[IndexID2Match], "id2match", encodeID(p.ID), &report)
				if err != nil {
					return nil, report, err
				}
				for _, mr := range matchRows {
					mp, err := decodeMatchingPair(mr)
					if err != nil {
						return nil, report, fmt.Errorf("%w: decoding id2match row: %v", ErrIndexIO, err)
					}
					if _, dup := seenMatch[mp.MatchingID]; dup {
						continue
					}
					seenMatch[mp.MatchingID] = struct{}{}

					finalRows, err := qe.lookup(stores[IndexMatch2ID], "match2id", encodeMatchingID(mp.MatchingID), &report)
					if err != nil {
						return nil, report, err
					}
					for _, fr := range finalRows {
						fp, err := decodeMatchingPair(fr)
						if err != nil {
							return nil, report, fmt.Errorf("%w: decoding match2id row: %v", ErrIndexIO, err)
						}
						if _, dup := seenIDs[fp.ID]; dup {
							continue
						}
						seenIDs[fp.ID] = struct{}{}
						out = append(out, fp.ID)
					}
				}
			}
		}
	}

	return out, report, nil
}
