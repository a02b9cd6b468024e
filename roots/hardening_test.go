package roots

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mersenneMinusOne(n uint) *big.Int {
	x := new(big.Int).Lsh(big.NewInt(1), n)
	return x.Sub(x, big.NewInt(2))
}

func TestHardeningExponentCoversSmallFactors(t *testing.T) {
	tab := DefaultTable()
	// Every prime factor of 2^(n-1)-1 is below 2^20, so R = N-1.
	for _, n := range []uint32{3, 5, 7, 11, 13, 17, 19, 31, 61} {
		r, err := tab.HardeningExponent(n, DefaultCapacity)
		require.NoError(t, err)
		assert.Equal(t, 0, r.Cmp(mersenneMinusOne(uint(n))), "n=%d r=%s", n, r)
	}
}

func TestHardeningExponentOmitsLargeFactors(t *testing.T) {
	tab := DefaultTable()
	cases := []struct {
		n       uint32
		missing int64
	}{
		{89, 2931542417},
		{127, 77158673929},
	}
	for _, c := range cases {
		r, err := tab.HardeningExponent(c.n, DefaultCapacity)
		require.NoError(t, err)
		full := mersenneMinusOne(uint(c.n))
		got := new(big.Int).Mul(r, big.NewInt(c.missing))
		assert.Equal(t, 0, got.Cmp(full), "n=%d", c.n)
	}
}

func TestHardeningExponentIsEvenAndLarge(t *testing.T) {
	tab := DefaultTable()
	for n := uint32(3); n < 400; n++ {
		r, err := tab.HardeningExponent(n, DefaultCapacity)
		require.NoError(t, err)
		assert.Zero(t, r.Bit(0), "n=%d", n)
		divs, err := FindDivisors(n - 1)
		require.NoError(t, err)
		if len(divs) > 2 {
			assert.Equal(t, 1, r.Cmp(big.NewInt(2)), "n=%d", n)
		}
	}
	_, err := tab.HardeningExponent(1, DefaultCapacity)
	assert.Error(t, err)
}

func TestRootsMultiplicity(t *testing.T) {
	// 2^18-1 = 3^3 * 7 * 19 * 73
	factors, err := DefaultTable().Roots(18, DefaultCapacity)
	require.NoError(t, err)
	want := map[uint32]Factor{
		3:  {Prime: 3, Order: 2, Power: 3},
		7:  {Prime: 7, Order: 3, Power: 1},
		19: {Prime: 19, Order: 18, Power: 1},
		73: {Prime: 73, Order: 9, Power: 1},
	}
	require.Len(t, factors, len(want))
	for _, f := range factors {
		assert.Equal(t, want[f.Prime], f)
	}
}

func TestHardenerCachesCopies(t *testing.T) {
	h, err := NewHardener(nil, 2, DefaultCapacity)
	require.NoError(t, err)
	r1, err := h.Exponent(31)
	require.NoError(t, err)
	r1.SetInt64(0)
	r2, err := h.Exponent(31)
	require.NoError(t, err)
	assert.Equal(t, 0, r2.Cmp(mersenneMinusOne(31)))
	assert.Same(t, DefaultHardener(), DefaultHardener())
}
