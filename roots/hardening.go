package roots

import (
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Factor is one prime contributing to a hardening exponent.
type Factor struct {
	Prime uint32 // p
	Order uint32 // ord_p(2), a divisor of the exponent
	Power int    // multiplicity of p in the product
}

// Roots lists the tabulated primes p with ord_p(2) | n, each with the power
// it has in 2^n-1: one plus the number of times p divides n/ord_p(2).
func (t *Table) Roots(n uint32, capacity int) ([]Factor, error) {
	divs, err := FindDivisorsCap(n, capacity)
	if err != nil {
		return nil, err
	}
	var out []Factor
	// divs[0] is always 1
	for _, d := range divs[1:] {
		for _, p := range t.Primes(d) {
			m := 1
			for left := n / d; left%p == 0; left /= p {
				m++
			}
			out = append(out, Factor{Prime: p, Order: d, Power: m})
		}
	}
	return out, nil
}

// MersenneRoots multiplies acc by the small prime factors of 2^n-1, with
// multiplicity.
func (t *Table) MersenneRoots(n uint32, acc *big.Int, capacity int) error {
	factors, err := t.Roots(n, capacity)
	if err != nil {
		return err
	}
	var p big.Int
	for _, f := range factors {
		p.SetUint64(uint64(f.Prime))
		for k := 0; k < f.Power; k++ {
			acc.Mul(acc, &p)
		}
	}
	return nil
}

// HardeningExponent returns the product-of-roots exponent for the Mersenne
// number 2^n-1. N-1 = 2*(2^(n-1)-1), so the product starts at 2 and picks up
// the small factors of 2^(n-1)-1. Raising a PRP residue to this power maps
// any small-order root of unity back to one.
func (t *Table) HardeningExponent(n uint32, capacity int) (*big.Int, error) {
	if n < 2 {
		return nil, errors.Errorf("roots: exponent %d too small", n)
	}
	acc := big.NewInt(2)
	if err := t.MersenneRoots(n-1, acc, capacity); err != nil {
		return nil, err
	}
	return acc, nil
}

// Hardener caches hardening exponents per Mersenne exponent; double checks
// of the same number reuse the product.
type Hardener struct {
	table    *Table
	capacity int
	cache    *lru.Cache[uint32, *big.Int]
}

// NewHardener returns a Hardener over table holding up to size exponents.
func NewHardener(table *Table, size, capacity int) (*Hardener, error) {
	if table == nil {
		table = DefaultTable()
	}
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[uint32, *big.Int](size)
	if err != nil {
		return nil, errors.Wrap(err, "roots: create exponent cache")
	}
	return &Hardener{table: table, capacity: capacity, cache: cache}, nil
}

var defaultHardener = sync.OnceValues(func() (*Hardener, error) {
	return NewHardener(nil, 64, DefaultCapacity)
})

// DefaultHardener returns the process-wide Hardener over the embedded table.
func DefaultHardener() *Hardener {
	h, err := defaultHardener()
	if err != nil {
		panic(err)
	}
	return h
}

// Exponent returns the hardening exponent for 2^n-1. The caller owns the
// returned value.
func (h *Hardener) Exponent(n uint32) (*big.Int, error) {
	if r, ok := h.cache.Get(n); ok {
		return new(big.Int).Set(r), nil
	}
	r, err := h.table.HardeningExponent(n, h.capacity)
	if err != nil {
		return nil, err
	}
	h.cache.Add(n, r)
	return new(big.Int).Set(r), nil
}

// Table returns the lookup table behind h.
func (h *Hardener) Table() *Table { return h.table }
