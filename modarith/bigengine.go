package modarith

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/remyoudompheng/bigfft"
)

// DefaultCheckInterval is how often, in multiplications, BigEngine re-derives
// a result with schoolbook arithmetic and compares.
const DefaultCheckInterval = 1 << 12

// Option configures a BigEngine.
type Option func(*BigEngine)

// WithCheckInterval sets the self-check period; 0 disables sampled checks
// (careful multiplies are still checked).
func WithCheckInterval(every uint64) Option {
	return func(e *BigEngine) { e.checkEvery = every }
}

// BigEngine multiplies with bigfft and reduces with shifts when k == 1:
// for x = hi*2^n + lo, x ≡ lo - c*hi (mod 2^n + c).
type BigEngine struct {
	mod        Modulus
	n          *big.Int
	mask       *big.Int // 2^n - 1, nil when the generic reduction is used
	negC       *big.Int
	checkEvery uint64

	ops   uint64
	muls  uint64
	err   error
	hi    big.Int
	check big.Int
}

// NewBigEngine returns an engine for m.
func NewBigEngine(m Modulus, opts ...Option) (*BigEngine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	e := &BigEngine{
		mod:        m,
		n:          m.Int(),
		negC:       big.NewInt(-m.C),
		checkEvery: DefaultCheckInterval,
	}
	// the shift path needs |c| well below 2^n to converge quickly
	if m.K == 1 && e.negC.BitLen() < int(m.N)/2 {
		e.mask = new(big.Int).Lsh(big.NewInt(1), uint(m.N))
		e.mask.Sub(e.mask, big.NewInt(1))
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// NewDefault is a Factory for BigEngine with default options.
func NewDefault(m Modulus) (Engine, error) { return NewBigEngine(m) }

func (e *BigEngine) Modulus() Modulus { return e.mod }

func (e *BigEngine) N() *big.Int { return new(big.Int).Set(e.n) }

func (e *BigEngine) New() *Residue { return &Residue{} }

func (e *BigEngine) SetBig(dst *Residue, x *big.Int) {
	dst.v.Set(x)
	e.reduce(&dst.v)
}

func (e *BigEngine) SetUint64(dst *Residue, v uint64) {
	dst.v.SetUint64(v)
	e.reduce(&dst.v)
}

func (e *BigEngine) Copy(dst, src *Residue) { dst.v.Set(&src.v) }

func (e *BigEngine) Big(r *Residue) *big.Int { return new(big.Int).Set(&r.v) }

func (e *BigEngine) Square(r *Residue) {
	e.ops += 2
	e.mulReduce(&r.v, &r.v, &r.v, false)
}

func (e *BigEngine) Mul(dst, src *Residue) {
	e.ops += 3
	e.mulReduce(&dst.v, &dst.v, &src.v, false)
}

func (e *BigEngine) MulCarefully(dst, src *Residue) {
	e.ops += 3
	e.mulReduce(&dst.v, &dst.v, &src.v, true)
}

func (e *BigEngine) Exp(r *Residue, x *big.Int) {
	if x.Sign() <= 0 {
		if x.Sign() < 0 {
			e.fail(errors.New("modarith: negative exponent"))
		}
		r.v.SetInt64(1)
		e.reduce(&r.v)
		return
	}
	base := &Residue{}
	e.Copy(base, r)
	for i := x.BitLen() - 2; i >= 0; i-- {
		e.Square(r)
		if x.Bit(i) == 1 {
			e.Mul(r, base)
		}
	}
}

func (e *BigEngine) ExpUint64(r *Residue, x uint64) {
	e.Exp(r, new(big.Int).SetUint64(x))
}

func (e *BigEngine) Err() error { return e.err }

func (e *BigEngine) ClearErr() { e.err = nil }

func (e *BigEngine) Ops() uint64 { return e.ops }

func (e *BigEngine) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// mulReduce sets z = x*y mod N. z may alias x or y.
func (e *BigEngine) mulReduce(z, x, y *big.Int, careful bool) {
	e.muls++
	checking := careful || (e.checkEvery > 0 && e.muls%e.checkEvery == 0)
	if checking {
		e.check.Mul(x, y)
		e.check.Mod(&e.check, e.n)
	}
	z.Set(bigfft.Mul(x, y))
	e.reduce(z)
	if checking && z.Cmp(&e.check) != 0 {
		e.fail(errors.Wrapf(ErrInconsistent, "multiplication %d", e.muls))
	}
}

func (e *BigEngine) reduce(z *big.Int) {
	if e.mask == nil {
		z.Mod(z, e.n)
		return
	}
	nbits := uint(e.mod.N)
	for z.BitLen() > int(nbits) {
		e.hi.Rsh(z, nbits)
		z.And(z, e.mask)
		e.hi.Mul(&e.hi, e.negC)
		z.Add(z, &e.hi)
	}
	for z.Sign() < 0 {
		z.Add(z, e.n)
	}
	for z.Cmp(e.n) >= 0 {
		z.Sub(z, e.n)
	}
}
