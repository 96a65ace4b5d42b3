package hash

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashLen is the ledger default output hash length in bytes
const HashLen = 32

// Hash is the hash type used in all ledger structures. Ledger headers, state tree nodes
// and transactions are all addressed by a Hash.
type Hash [HashLen]byte

// ZeroHash is the all-zero hash. It marks an absent parent, an empty tree, or an unknown hash.
var ZeroHash Hash

// Prefix is the four byte domain separator mixed into every hash computation so that
// objects of different kinds can never collide.
type Prefix [4]byte

var (
	PrefixLedgerHeader = Prefix{'L', 'W', 'R', 0}
	PrefixInnerNode    = Prefix{'M', 'I', 'N', 0}
	PrefixLeafNode     = Prefix{'M', 'L', 'N', 0}
	PrefixTxNode       = Prefix{'S', 'N', 'D', 0}
	PrefixTxID         = Prefix{'T', 'X', 'N', 0}
	PrefixAccountIndex = Prefix{'A', 'C', 'T', 0}
)

// IsZero returns true if all bytes of the hash are zero.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the upper case hex encoding of the hash, the canonical form used
// in logs and ledger exports.
func (h Hash) String() string {
	return fmt.Sprintf("%X", h[:])
}

// MarshalText implements encoding.TextMarshaler so hashes render as hex in JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Nibble returns the 4-bit digit of the hash at the given depth (0..63).
func (h Hash) Nibble(depth int) int {
	b := h[depth/2]
	if depth%2 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0F)
}

// ToHash converts a byte slice into a Hash.
// It returns an error if the slice has an invalid length.
func ToHash(bytes []byte) (Hash, error) {
	var h Hash
	if len(bytes) != len(h) {
		return ZeroHash, fmt.Errorf("expecting %d bytes but got %d bytes", len(h), len(bytes))
	}
	copy(h[:], bytes)
	return h, nil
}

// FromHex parses a 64 character hex string into a Hash.
func FromHex(s string) (Hash, error) {
	if len(s) != 2*HashLen {
		return ZeroHash, fmt.Errorf("expecting %d hex characters but got %d", 2*HashLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("invalid hex hash: %w", err)
	}
	return ToHash(b)
}

// Sum computes the prefixed SHA3-256 hash over the concatenation of the given parts.
func Sum(prefix Prefix, parts ...[]byte) Hash {
	hasher := sha3.New256()
	_, _ = hasher.Write(prefix[:])
	for _, p := range parts {
		_, _ = hasher.Write(p)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
