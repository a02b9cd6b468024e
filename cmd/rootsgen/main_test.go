package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/roots"
)

func TestOrder(t *testing.T) {
	cases := map[uint32]uint32{3: 2, 5: 4, 7: 3, 23: 11, 89: 11, 127: 7, 8191: 13, 65537: 32}
	for p, z := range cases {
		assert.Equal(t, z, Order(p), "p=%d", p)
	}
}

func TestGaps(t *testing.T) {
	g, err := Gaps(primesBelow(30))
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 1, 2, 2, 4, 2, 4, 2, 4, 6}, g)

	_, err = Gaps([]uint32{2, 1000})
	assert.Error(t, err)
}

func TestOrderTableParses(t *testing.T) {
	data := OrderTable(OrderGroups(primesBelow(1<<12)), 1<<12)
	table, err := roots.ParseTable(string(data))
	require.NoError(t, err)
	assert.Equal(t, []uint32{23, 89}, table.Primes(11))
	assert.Equal(t, []uint32{3}, table.Primes(2))
}

func TestCommittedTablesAreCurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("regenerates the full order table")
	}
	want, err := os.ReadFile("../../roots/rootsdata.txt")
	require.NoError(t, err)
	got := OrderTable(OrderGroups(primesBelow(1<<20)), 1<<20)
	assert.Equal(t, string(want), string(got))

	gaps, err := Gaps(primesBelow(1 << 15))
	require.NoError(t, err)
	src, err := GapsSource(gaps, 15)
	require.NoError(t, err)
	wantSrc, err := os.ReadFile("../../roots/gaps.go")
	require.NoError(t, err)
	assert.Equal(t, string(wantSrc), string(src))
}
