package medley

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// H64Seed is the fixed 64-bit seed constant required by spec §6. Any
// implementation publishing or reading Medley indexes must use this same
// value, or fingerprints will not be portable across builds.
const H64Seed uint64 = 0x9E3779B97F4A7C15

// combine64 mixes bytes, length-prefixed, into state using xxhash seeded
// with state itself. This is the "H64_MIX" primitive named in spec §6:
// any fixed, streaming 64-bit hash with standard mixing strength qualifies,
// and xxhash's seeded digest gives us exactly that.
func combine64(state uint64, data []byte) uint64 {
	d := xxhash.NewWithSeed(state)
	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(data)))
	_, _ = d.Write(lenPrefix[:])
	_, _ = d.Write(data)
	return d.Sum64()
}

// H64Bytes folds a sequence of byte strings into a single Hash, seeded at
// H64Seed, in the order given — the left-fold named in spec §6.
func H64Bytes(parts ...[]byte) Hash {
	state := H64Seed
	for _, p := range parts {
		state = combine64(state, p)
	}
	return Hash(state)
}

// H64Strings is H64Bytes over plain strings, the common case for field and
// group hashing.
func H64Strings(parts ...string) Hash {
	state := H64Seed
	for _, p := range parts {
		state = combine64(state, []byte(p))
	}
	return Hash(state)
}

// combineSeedHash folds a single Hash value into a seed context, used to
// bind a record's required-group hash into every fingerprint it emits
// (spec §4.4 step 3d: "the required-hash is combined as the seed context
// into every fingerprint").
func combineSeedHash(seed Hash, h Hash) Hash {
	return Hash(combine64(uint64(seed), encodeHash(h)))
}

// fieldHashBytes returns the literal bytes hashed for one non-empty field
// within a group: "fieldName:" + trimmed UTF-8 value, spec §4.4 tie-breaks.
func fieldHashBytes(fieldName, trimmedValue string) []byte {
	buf := make([]byte, 0, len(fieldName)+1+len(trimmedValue))
	buf = append(buf, fieldName...)
	buf = append(buf, ':')
	buf = append(buf, trimmedValue...)
	return buf
}
