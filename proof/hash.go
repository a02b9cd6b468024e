package proof

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/sha3"

	"prp-proof/modarith"
)

// Hash is a SHA3-256 digest from the proof hash chain.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Truncate returns the low bits of the first eight digest bytes read as a
// little-endian integer; this is the round challenge.
func (h Hash) Truncate(bits int) uint64 {
	v := binary.LittleEndian.Uint64(h[:8])
	if bits >= 64 {
		return v
	}
	return v & (1<<uint(bits) - 1)
}

// Hasher hashes residues of one modulus. Residues are serialized as
// little-endian integers padded to whole 32-bit words.
type Hasher struct {
	width int
}

// NewHasher returns a Hasher for residues modulo m.
func NewHasher(m modarith.Modulus) Hasher {
	return Hasher{width: m.WordWidth()}
}

// Root hashes a single residue. It seeds each segment's chain and is also
// used for the final A and B comparison.
func (s Hasher) Root(x *big.Int) Hash {
	var h Hash
	d := sha3.New256()
	d.Write(modarith.EncodeLE(x, s.width))
	d.Sum(h[:0])
	return h
}

// Link hashes prev followed by x, chaining one round to the next.
func (s Hasher) Link(prev Hash, x *big.Int) Hash {
	var h Hash
	d := sha3.New256()
	d.Write(prev[:])
	d.Write(modarith.EncodeLE(x, s.width))
	d.Sum(h[:0])
	return h
}
