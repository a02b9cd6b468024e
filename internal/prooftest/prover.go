// Package prooftest writes genuine PRP proofs for small numbers so that
// every verifier path can be exercised without a real prover.
package prooftest

import (
	"bytes"
	"math/big"
	"os"

	"github.com/pkg/errors"

	"prp-proof/proof"
)

// Spec describes the proof to produce.
type Spec struct {
	Number     string // NUMBER= text such as "M31", "M11/23", "3*2^5+1"
	Version    int
	Power      int
	Multiplier int
	HashBits   int
	Base       uint32
	Strategy   proof.Halving
}

func (s Spec) withDefaults() Spec {
	if s.Version == 0 {
		s.Version = 2
	}
	if s.Multiplier == 0 {
		s.Multiplier = 1
	}
	if s.HashBits == 0 {
		s.HashBits = 64
	}
	if s.Base == 0 {
		s.Base = proof.DefaultBase
	}
	return s
}

// Proof is a generated proof file.
type Proof struct {
	Header *proof.Header
	Data   []byte
}

// Width is the residue size in bytes.
func (p *Proof) Width() int { return p.Header.Modulus().ByteWidth() }

// Offset is the file offset of residue i.
func (p *Proof) Offset(i int) int { return int(p.Header.Size) + i*p.Width() }

// Build computes the proof a correct prover would write for s.
func Build(s Spec) (*Proof, error) {
	s = s.withDefaults()
	spec, err := proof.ParseNumber(s.Number)
	if err != nil {
		return nil, err
	}
	hdr := &proof.Header{
		Version:         s.Version,
		HashBits:        s.HashBits,
		Power:           s.Power,
		PowerMultiplier: s.Multiplier,
		Base:            s.Base,
		Number:          spec,
	}
	var buf bytes.Buffer
	if err := proof.WriteHeader(&buf, hdr); err != nil {
		return nil, err
	}

	mod := spec.Modulus
	n := mod.Int()
	hasher := proof.NewHasher(mod)
	topK := hdr.TopK()
	mult := uint64(s.Multiplier)

	a := new(big.Int).Exp(big.NewInt(int64(s.Base)), new(big.Int).SetUint64(mod.K), n)
	for i := uint64(0); i < topK%mult; i++ {
		square(a, n)
	}
	for seg := uint64(0); seg < mult; seg++ {
		t := topK / mult
		b := powerOfTwo(a, t, n)
		next := new(big.Int).Set(b)
		if err := proof.WriteResidue(&buf, mod, b); err != nil {
			return nil, err
		}
		prev := hasher.Root(b)
		for i := 0; i < s.Power; i++ {
			var squareA, squareB bool
			t, squareA, squareB = s.Strategy.Halve(t)
			if squareB {
				square(b, n)
			}
			if squareA {
				square(a, n)
			}
			u := powerOfTwo(a, t, n)
			if err := proof.WriteResidue(&buf, mod, u); err != nil {
				return nil, err
			}
			if i == s.Power-1 {
				break
			}
			prev = hasher.Link(prev, u)
			h := new(big.Int).SetUint64(prev.Truncate(s.HashBits))
			a.Exp(a, h, n)
			a.Mul(a, u).Mod(a, n)
			b.Mul(b, new(big.Int).Exp(u, h, n)).Mod(b, n)
		}
		a = next
	}
	return &Proof{Header: hdr, Data: buf.Bytes()}, nil
}

// MustBuild is Build for fixtures known to be well formed.
func MustBuild(s Spec) *Proof {
	p, err := Build(s)
	if err != nil {
		panic(err)
	}
	return p
}

// WriteFile stores data at path.
func WriteFile(path string, data []byte) error {
	return errors.Wrap(os.WriteFile(path, data, 0o644), "prooftest: write proof")
}

// FlipBit returns a copy of the proof data with one bit of residue i
// inverted.
func (p *Proof) FlipBit(i, bit int) []byte {
	out := bytes.Clone(p.Data)
	out[p.Offset(i)+bit/8] ^= 1 << (bit % 8)
	return out
}

// Preallocated returns the file a prover would leave on disk after writing
// only the first residues residues: full length, zero-filled past them.
func (p *Proof) Preallocated(residues int) []byte {
	out := make([]byte, len(p.Data))
	copy(out, p.Data[:p.Offset(residues)])
	return out
}

func square(x, n *big.Int) {
	x.Mul(x, x).Mod(x, n)
}

func powerOfTwo(x *big.Int, t uint64, n *big.Int) *big.Int {
	y := new(big.Int).Set(x)
	for i := uint64(0); i < t; i++ {
		square(y, n)
	}
	return y
}
