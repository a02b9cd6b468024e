package roots

import (
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v4/ring"
)

func TestSearchZKnownOrders(t *testing.T) {
	tab := DefaultTable()
	cases := []struct {
		z    uint32
		want []uint32
	}{
		{2, []uint32{3}},
		{3, []uint32{7}},
		{4, []uint32{5}},
		{10, []uint32{11}},
		{11, []uint32{23, 89}},
		{23, []uint32{47, 178481}},
		{29, []uint32{233, 1103, 2089}},
		{1, nil},
		{6, nil},
		{1 << 30, nil},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, tab.Primes(c.z), "z=%d", c.z)
	}
	assert.Equal(t, 0, tab.SearchZ(2))
}

func TestSearchZFindsEveryKey(t *testing.T) {
	tab := DefaultTable()
	for _, z := range tab.Keys() {
		pos := tab.SearchZ(z)
		require.GreaterOrEqual(t, pos, 0, "z=%d", z)
		require.Equal(t, -int32(z), tab.merged[pos])
	}
}

func TestTableEntriesArePrimesOfTheirOrder(t *testing.T) {
	tab := DefaultTable()
	var z uint32
	for _, v := range tab.merged {
		if v < 0 {
			z = uint32(-v)
			continue
		}
		p := uint32(v)
		require.True(t, ring.IsPrime(uint64(p)), "%d", p)
		require.Equal(t, uint32(1), mathutil.ModPowUint32(2, z, p), "2^%d mod %d", z, p)
		require.Zero(t, (p-1)%z, "ord must divide p-1")
	}
}

func TestSearchZSmallTables(t *testing.T) {
	tab, err := ParseTable("-2,3,\n-4,5,\n-8,17,\n-10,11,\n-11,23,89,\n")
	require.NoError(t, err)
	for _, z := range []uint32{2, 4, 8, 10, 11} {
		assert.GreaterOrEqual(t, tab.SearchZ(z), 0, "z=%d", z)
	}
	for _, z := range []uint32{1, 3, 5, 9, 12} {
		assert.Equal(t, -1, tab.SearchZ(z), "z=%d", z)
	}

	single, err := ParseTable("-5,31")
	require.NoError(t, err)
	assert.Equal(t, 0, single.SearchZ(5))
	assert.Equal(t, -1, single.SearchZ(6))
}

func TestParseTableRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"# only a comment\n",
		"3,-2",
		"-4,5,\n-2,3,",
		"-2,0",
		"-2,x",
	} {
		_, err := ParseTable(data)
		assert.Error(t, err, "%q", data)
	}
}
