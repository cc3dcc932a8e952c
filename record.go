package medley

import "strings"

// emptyGroupHash is H64 of the empty byte-string sequence: the value a
// group's hash takes on when every field in it is empty after trimming.
var emptyGroupHash = Hash(H64Seed)

// HashRecord implements RecordHasher (C4): for the given record and
// directive plan, emit the deduplicated set of (entityId, fingerprint)
// pairs across every alternative (spec §4.4).
func HashRecord(r SourceRecord, plan Plan, maxEditDistance int) []LookupPair {
	d := clampEditDistance(maxEditDistance)
	seen := make(map[Hash]struct{})
	var out []LookupPair

	for _, alt := range plan.Alternatives {
		for _, h := range hashAlternative(r, alt, d) {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, LookupPair{ID: r.ID, Hash: h})
		}
	}

	return out
}

func hashAlternative(r SourceRecord, alt Alternative, d int) []Hash {
	base := projectAlternative(r, alt)
	variants := expandVariants(base, uniqueExpandableFields(alt))

	var fingerprints []Hash
	for _, v := range variants {
		fingerprints = append(fingerprints, fingerprintsForVariant(alt, v, d)...)
	}
	return fingerprints
}

// projectAlternative builds the trimmed field values the alternative
// references (spec §4.4 step 1). An absent or unreadable field is the
// empty string.
func projectAlternative(r SourceRecord, alt Alternative) map[string]string {
	values := make(map[string]string)
	for _, g := range alt.Groups {
		for _, f := range g.Fields {
			if _, ok := values[f.Name]; ok {
				continue
			}
			raw := ""
			if r.Fields != nil {
				raw = r.Fields(f.Name)
			}
			values[f.Name] = strings.TrimSpace(raw)
		}
	}
	return values
}

// uniqueExpandableFields returns each distinct field name in alt that
// requests a string-level expansion (expand > 0), in first-seen order.
// Normalization guarantees every occurrence of a name carries the same
// expand value, so expanding once per name is sufficient.
func uniqueExpandableFields(alt Alternative) []Field {
	seen := make(map[string]bool)
	var fields []Field
	for _, g := range alt.Groups {
		for _, f := range g.Fields {
			if f.Expand <= 0 || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// expandVariants replaces R = {r} with the cross-product of string
// neighborhoods for every expandable field (spec §4.4 step 2).
func expandVariants(base map[string]string, expandable []Field) []map[string]string {
	variants := []map[string]string{base}

	for _, f := range expandable {
		neighborhood := StringNeighborhood(base[f.Name], f.Expand)
		next := make([]map[string]string, 0, len(variants)*len(neighborhood))
		for _, v := range variants {
			for nv := range neighborhood {
				cp := make(map[string]string, len(v))
				for k, val := range v {
					cp[k] = val
				}
				cp[f.Name] = nv
				next = append(next, cp)
			}
		}
		variants = next
	}

	return variants
}

// fingerprintsForVariant implements spec §4.4 step 3 for one record variant.
func fingerprintsForVariant(alt Alternative, variant map[string]string, d int) []Hash {
	var required, other []Group
	for _, g := range alt.Groups {
		if g.Required {
			required = append(required, g)
		} else {
			other = append(other, g)
		}
	}

	hReq := requiredHash(required, variant)

	otherHashes := make([]Hash, 0, len(other))
	for _, g := range other {
		h := groupHash(g, variant)
		if h == emptyGroupHash {
			continue
		}
		otherHashes = append(otherHashes, h)
	}

	var fingerprints []Hash
	for h := range GroupNeighborhood(otherHashes, d) {
		fingerprints = append(fingerprints, combineSeedHash(hReq, h))
	}
	return fingerprints
}

// groupHash hashes the non-empty fields of one group, in directive order,
// as "fieldName:value" byte strings (spec §4.4 step 3a). Fields whose
// trimmed value is empty are omitted entirely, not hashed as empty.
func groupHash(g Group, variant map[string]string) Hash {
	var parts [][]byte
	for _, f := range g.Fields {
		v := variant[f.Name]
		if v == "" {
			continue
		}
		parts = append(parts, fieldHashBytes(f.Name, v))
	}
	return H64Bytes(parts...)
}

// requiredHash computes H_req: the H64 fold of the required groups' hashes,
// or SentinelHash when there are no required groups (spec §4.4 step 3b).
func requiredHash(required []Group, variant map[string]string) Hash {
	if len(required) == 0 {
		return SentinelHash
	}
	parts := make([][]byte, 0, len(required))
	for _, g := range required {
		parts = append(parts, encodeHash(groupHash(g, variant)))
	}
	return H64Bytes(parts...)
}
