package roots

import (
	"github.com/cznic/mathutil"
	"github.com/pkg/errors"
)

// DefaultCapacity bounds the divisor list. No n below 2^32 reaches it, so
// hitting it means the input is outside what the hardening tables serve.
const DefaultCapacity = 2401

// ErrCapacityExceeded is returned when n has more divisors than allowed.
var ErrCapacityExceeded = errors.New("roots: divisor capacity exceeded")

// FindDivisors returns all divisors of n, including 1 and n, using
// DefaultCapacity.
func FindDivisors(n uint32) ([]uint32, error) {
	return FindDivisorsCap(n, DefaultCapacity)
}

// FindDivisorsCap returns all divisors of n. The order is deterministic: 1
// first, then for each prime factor p (ascending) with multiplicity m the
// existing list multiplied by p, p^2, ..., p^m.
func FindDivisorsCap(n uint32, capacity int) ([]uint32, error) {
	if n == 0 {
		return nil, errors.New("roots: 0 has no finite divisor set")
	}
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	divs := make([]uint32, 1, 64)
	divs[0] = 1

	var (
		prime uint64
		err   error
	)
	for _, g := range gaps {
		if n <= 1 {
			break
		}
		prime += uint64(g)
		// past sqrt(n) the rest is one final prime factor
		if prime*prime > uint64(n) {
			prime = uint64(n)
		}
		if divs, n, err = addFactor(divs, n, uint32(prime), capacity); err != nil {
			return divs, err
		}
	}
	if n > 1 {
		// All prime factors exceed 2^15 but there may be two of them.
		for _, term := range mathutil.FactorInt(n) {
			if divs, n, err = addFactor(divs, n, term.Prime, capacity); err != nil {
				return divs, err
			}
		}
	}
	return divs, nil
}

func addFactor(divs []uint32, n, p uint32, capacity int) ([]uint32, uint32, error) {
	m := 0
	for n%p == 0 {
		m++
		n /= p
	}
	old := len(divs)
	pk := p
	for i := 0; i < m; i, pk = i+1, pk*p {
		for j := 0; j < old; j++ {
			if len(divs) >= capacity {
				return divs, n, errors.Wrapf(ErrCapacityExceeded, "%d divisors", capacity)
			}
			divs = append(divs, divs[j]*pk)
		}
	}
	return divs, n, nil
}
