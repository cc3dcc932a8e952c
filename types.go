package medley

import (
	"encoding/binary"
	"fmt"
)

// ID is a caller-supplied entity identifier. Only the low 48 bits are
// significant; the engine never interprets the value beyond equality and
// ordering.
type ID uint64

// MaxID is the largest representable ID_t (48 bits set).
const MaxID ID = 1<<48 - 1

// NewID validates that v fits in 48 bits.
func NewID(v uint64) (ID, error) {
	if v > uint64(MaxID) {
		return 0, fmt.Errorf("medley: id %d exceeds 48-bit range", v)
	}
	return ID(v), nil
}

// Hash is a 64-bit fingerprint produced by the H64 stable hash (see hash.go).
type Hash uint64

// SentinelHash is the fixed "empty element" value: GroupNeighborhood's lone
// output for an empty input, and the required-group hash of an alternative
// with no required groups.
const SentinelHash Hash = 0xFFFFFFFFFFFFFFFF

// MatchingID is a densely-numbered canonical cluster id assigned by
// ClusterBuilder. Not stable across rebuilds.
type MatchingID uint32

// LookupPair is a single (id, fingerprint) row as emitted by RecordHasher
// and stored, in both directions, in the Hash2ID/ID2Hash indexes.
type LookupPair struct {
	ID   ID
	Hash Hash
}

// MatchingPair is a single (matchingId, id) row stored, in both directions,
// in the Match2ID/ID2Match indexes.
type MatchingPair struct {
	MatchingID MatchingID
	ID         ID
}

// idByteLen, hashByteLen and matchByteLen are the fixed little-endian
// payload widths named in spec §6.
const (
	idByteLen    = 6
	hashByteLen  = 8
	matchByteLen = 4
)

// encodeID writes the low 48 bits of id, little-endian, into a 6-byte slice.
func encodeID(id ID) []byte {
	buf := make([]byte, idByteLen)
	v := uint64(id)
	for i := 0; i < idByteLen; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func decodeID(buf []byte) (ID, error) {
	if len(buf) != idByteLen {
		return 0, fmt.Errorf("medley: id payload must be %d bytes, got %d", idByteLen, len(buf))
	}
	var v uint64
	for i := 0; i < idByteLen; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return ID(v), nil
}

func encodeHash(h Hash) []byte {
	buf := make([]byte, hashByteLen)
	binary.LittleEndian.PutUint64(buf, uint64(h))
	return buf
}

func decodeHash(buf []byte) (Hash, error) {
	if len(buf) != hashByteLen {
		return 0, fmt.Errorf("medley: hash payload must be %d bytes, got %d", hashByteLen, len(buf))
	}
	return Hash(binary.LittleEndian.Uint64(buf)), nil
}

func encodeMatchingID(m MatchingID) []byte {
	buf := make([]byte, matchByteLen)
	binary.LittleEndian.PutUint32(buf, uint32(m))
	return buf
}

func decodeMatchingID(buf []byte) (MatchingID, error) {
	if len(buf) != matchByteLen {
		return 0, fmt.Errorf("medley: matchingId payload must be %d bytes, got %d", matchByteLen, len(buf))
	}
	return MatchingID(binary.LittleEndian.Uint32(buf)), nil
}

// encodeLookupPair returns the payload bytes stored under both the
// Hash2ID and ID2Hash indexes: {id, hashValue}, little-endian, fixed width.
func encodeLookupPair(p LookupPair) []byte {
	buf := make([]byte, 0, idByteLen+hashByteLen)
	buf = append(buf, encodeID(p.ID)...)
	buf = append(buf, encodeHash(p.Hash)...)
	return buf
}

func decodeLookupPair(buf []byte) (LookupPair, error) {
	if len(buf) != idByteLen+hashByteLen {
		return LookupPair{}, fmt.Errorf("medley: lookup pair payload must be %d bytes, got %d", idByteLen+hashByteLen, len(buf))
	}
	id, err := decodeID(buf[:idByteLen])
	if err != nil {
		return LookupPair{}, err
	}
	h, err := decodeHash(buf[idByteLen:])
	if err != nil {
		return LookupPair{}, err
	}
	return LookupPair{ID: id, Hash: h}, nil
}

// encodeMatchingPair returns the payload bytes stored under both the
// Match2ID and ID2Match indexes: {matchingId, id}, little-endian, fixed width.
func encodeMatchingPair(p MatchingPair) []byte {
	buf := make([]byte, 0, matchByteLen+idByteLen)
	buf = append(buf, encodeMatchingID(p.MatchingID)...)
	buf = append(buf, encodeID(p.ID)...)
	return buf
}

func decodeMatchingPair(buf []byte) (MatchingPair, error) {
	if len(buf) != matchByteLen+idByteLen {
		return MatchingPair{}, fmt.Errorf("medley: matching pair payload must be %d bytes, got %d", matchByteLen+idByteLen, len(buf))
	}
	m, err := decodeMatchingID(buf[:matchByteLen])
	if err != nil {
		return MatchingPair{}, err
	}
	id, err := decodeID(buf[matchByteLen:])
	if err != nil {
		return MatchingPair{}, err
	}
	return MatchingPair{MatchingID: m, ID: id}, nil
}

// SourceRecord is the caller's view of one input row: an entity id plus a
// field projector. Field lookups are lazy so RecordHasher only materialises
// the fields a given directive alternative actually references.
type SourceRecord struct {
	ID     ID
	Fields RecordView
}

// RecordView maps a field name to its caller-supplied value. An absent or
// unreadable field must be reported as the empty string, never an error —
// spec §4.4 step 1.
type RecordView func(fieldName string) string

// MapView adapts a plain map into a RecordView, the common case for tests
// and small examples.
func MapView(m map[string]string) RecordView {
	return func(fieldName string) string {
		return m[fieldName]
	}
}
