// Package modarith is the modular arithmetic facade used by the proof
// verifier. Residues live modulo N = k*2^n + c and are manipulated in place
// through an Engine; the verifier never touches their representation.
package modarith

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/pkg/errors"
)

// MaxK is the largest multiplier representable exactly in a float64.
const MaxK = 1 << 53

// Modulus describes N = K*2^N + C.
type Modulus struct {
	K uint64
	N uint32
	C int64
}

// Validate checks the ranges the engines support.
func (m Modulus) Validate() error {
	switch {
	case m.K == 0 || m.K > MaxK:
		return errors.Errorf("modarith: k=%d out of range [1, 2^53]", m.K)
	case m.N == 0:
		return errors.New("modarith: n must be positive")
	case m.C == 0:
		return errors.New("modarith: c must be non-zero")
	}
	if m.Int().Cmp(big.NewInt(2)) <= 0 {
		return errors.Errorf("modarith: modulus %s too small", m)
	}
	return nil
}

// Int returns N as a new big.Int.
func (m Modulus) Int() *big.Int {
	x := new(big.Int).SetUint64(m.K)
	x.Lsh(x, uint(m.N))
	return x.Add(x, big.NewInt(m.C))
}

// IsMersenne reports whether N = 2^n - 1.
func (m Modulus) IsMersenne() bool { return m.K == 1 && m.C == -1 }

// BitLength is ceil(log2(k*2^n)), the width residues are stored with. It
// ignores c, so 2^n+1 has bit length n.
func (m Modulus) BitLength() int {
	return int(m.N) + bits.Len64(m.K-1)
}

// ByteWidth is the number of bytes a residue occupies in a proof file.
func (m Modulus) ByteWidth() int { return (m.BitLength() + 7) / 8 }

// WordWidth is ByteWidth rounded up to whole 32-bit words, the unit residues
// are hashed in.
func (m Modulus) WordWidth() int { return (m.BitLength() + 31) / 32 * 4 }

func (m Modulus) String() string {
	switch {
	case m.IsMersenne():
		return fmt.Sprintf("M%d", m.N)
	case m.K == 1:
		return fmt.Sprintf("2^%d%+d", m.N, m.C)
	default:
		return fmt.Sprintf("%d*2^%d%+d", m.K, m.N, m.C)
	}
}
