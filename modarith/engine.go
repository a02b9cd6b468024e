package modarith

import (
	"math/big"

	"github.com/pkg/errors"
)

// ErrInconsistent marks a result that failed an engine self-check, the
// exact-arithmetic counterpart of a transform round-off error.
var ErrInconsistent = errors.New("modarith: inconsistent result")

// Residue is an engine-owned value modulo N. Only the Engine that allocated
// it may operate on it.
type Residue struct {
	v big.Int
}

// Engine performs modular arithmetic for one modulus. Engines keep scratch
// state and are not safe for concurrent use.
type Engine interface {
	Modulus() Modulus
	N() *big.Int

	New() *Residue
	SetBig(dst *Residue, x *big.Int)
	SetUint64(dst *Residue, v uint64)
	Copy(dst, src *Residue)
	// Big returns the canonical value in [0, N).
	Big(r *Residue) *big.Int

	Square(r *Residue)
	// Mul sets dst = dst * src.
	Mul(dst, src *Residue)
	// MulCarefully is Mul for operands with non-random bit patterns; the
	// result is always self-checked.
	MulCarefully(dst, src *Residue)
	Exp(r *Residue, e *big.Int)
	ExpUint64(r *Residue, e uint64)

	// Err returns the first self-check failure since the last ClearErr.
	Err() error
	ClearErr()
	// Ops counts transforms: a squaring costs 2, a multiplication 3.
	Ops() uint64
}

// Squarings converts a transform count into equivalent squarings.
func Squarings(ops uint64) uint64 { return (ops + 1) / 2 }

// Factory builds an engine for a modulus.
type Factory func(Modulus) (Engine, error)
