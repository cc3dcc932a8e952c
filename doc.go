/*
Package medley provides fuzzy, record-level similarity matching and
deduplication at index-build scale.

# Overview

Medley answers one question cheaply, offline, at scale: "which of these
N records are probably the same real-world entity?" It does this without
a similarity matrix (no O(N^2) pairwise comparison) by compiling each
record into a small set of fingerprints such that two records sharing any
fingerprint are considered related, then grouping related records via
union-find into dense, numbered clusters.

Two tunable knobs control how fuzzy the match is:

  - a directive: which fields to compare, which of them are mandatory,
    and how they combine (DirectiveParser, ParsePlan)
  - an edit distance: how many single-character or whole-field deletions
    still count as "the same" (StringNeighborhood, GroupNeighborhood)

# Quick Start

	plan, _ := medley.ParsePlan("&postal;fname%1,lname%1;city")

	records := []medley.SourceRecord{
		{ID: 1, Fields: medley.MapView(map[string]string{
			"postal": "94107", "fname": "Alice", "lname": "Smith", "city": "SF",
		})},
		{ID: 2, Fields: medley.MapView(map[string]string{
			"postal": "94107", "fname": "Alise", "lname": "Smith", "city": "Oakland",
		})},
	}

	engine := medley.NewEngine(opener, cfg, logger)
	report, err := engine.BuildAllIndexes(ctx, slices.Values(records), plan, 1, paths)

Record 2's typo'd first name ("Alise") still falls inside the expand=1
string neighborhood of "Alice", and the differing city is tolerated by
group-level deletion since city is not a required field — so both
records land in the same cluster.

# Pipeline

The directive compiles each record through two layered deletion
neighborhoods:

 1. Character-level (StringNeighborhood): expands a field value into the
    set of strings reachable by deleting up to expandEditDistance UTF-8
    code points.
 2. Group-level (GroupNeighborhood): drops up to editDistance whole field
    groups from the alternative, except groups marked required with "&".

RecordHasher (HashRecord) combines both neighborhoods into a set of
64-bit fingerprints per record via a stable, seeded hash (H64). Any two
records sharing a fingerprint are joined by ClusterBuilder (BuildClusters)
through union-find, producing a dense MatchingID for every input ID.
IndexWriter publishes four lookup tables; QueryEngine answers "what's
related to this ID" or "what's related to this example record" against
them without ever recomputing clusters.

# Determinism

The (ID, fingerprint, MatchingID) content built from identical inputs is
byte-identical: MatchingID assignment is ordered by the smallest entity
ID in each cluster, not by map iteration, and every set-typed intermediate (StringSet,
HashSet) feeds into a hash or a sort before being written. This is a
claim about the logical rows, not the index files on disk — the shipped
badger-backed store writes a fresh generation directory and its own
internal metadata on every publish, so two rebuilds from the same input
produce the same rows but not byte-identical files.

# Scale

BuildClusters has two interchangeable code paths over the same
(ID, fingerprint) relation: an in-memory disjoint-set forest for the
common case, and a sorted-edge chain-reduction pass — the same shape as
a distributed streaming reduce — once the edge count crosses
EngineConfig.ClusterLocalThreshold. Both produce identical assignments;
the threshold is a performance knob, not a correctness switch.
*/
package medley
