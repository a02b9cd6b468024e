// Package roots computes the exponent used to harden PRP proofs of Mersenne
// numbers against root-of-unity forgeries.
//
// The data comes from two static tables: gaps between the primes below 2^15
// (used for trial factoring) and a compacted table of z(p) = ord_p(2) for the
// odd primes below 2^20. In the order table each key z is stored as -z and is
// followed by the ascending primes sharing that order; keys ascend.
package roots

import (
	_ "embed"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

//go:generate go run ../cmd/rootsgen -out .

//go:embed rootsdata.txt
var rootsData string

// Table is an immutable z(p) lookup table.
type Table struct {
	merged []int32
}

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return ParseTable(rootsData)
})

// DefaultTable returns the embedded table, parsed once per process.
func DefaultTable() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTable reads the text form written by cmd/rootsgen: comma separated
// integers, '#' comments, negative entries opening a group.
func ParseTable(data string) (*Table, error) {
	merged := make([]int32, 0, len(data)/6)
	lastKey := int64(0)
	for lineNo, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "roots: line %d", lineNo+1)
			}
			switch {
			case v < 0:
				if -v <= lastKey {
					return nil, errors.Errorf("roots: line %d: key %d not ascending", lineNo+1, -v)
				}
				lastKey = -v
			case v == 0:
				return nil, errors.Errorf("roots: line %d: zero entry", lineNo+1)
			case len(merged) == 0:
				return nil, errors.Errorf("roots: line %d: prime %d before first key", lineNo+1, v)
			}
			merged = append(merged, int32(v))
		}
	}
	if len(merged) == 0 {
		return nil, errors.New("roots: empty order table")
	}
	return &Table{merged: merged}, nil
}

// Len reports the number of entries, keys and primes together.
func (t *Table) Len() int { return len(t.merged) }

// locateZ returns the position of the nearest key at or below pos.
func (t *Table) locateZ(pos int) int {
	for t.merged[pos] >= 0 {
		pos--
	}
	return pos
}

func (t *Table) key(pos int) uint32 { return uint32(-t.merged[pos]) }

// SearchZ finds the group whose key equals z and returns its position, or -1.
// Groups have different sizes, so every probe snaps back to the preceding key.
func (t *Table) SearchZ(z uint32) int {
	a := 0
	b := t.locateZ(len(t.merged) - 1)

	switch {
	case z < t.key(a):
		return -1
	case z == t.key(a):
		return a
	case z > t.key(b):
		return -1
	case z == t.key(b):
		return b
	}

	for {
		mid := t.locateZ((a + b) / 2)
		if mid == a {
			mid = t.locateZ(b - 1)
			if mid == a {
				return -1
			}
		}
		switch k := t.key(mid); {
		case z < k:
			b = mid
		case z > k:
			a = mid
		default:
			return mid
		}
	}
}

// Primes returns the primes p with ord_p(2) == z, ascending. The result is
// empty when no such prime is tabulated.
func (t *Table) Primes(z uint32) []uint32 {
	pos := t.SearchZ(z)
	if pos < 0 {
		return nil
	}
	var out []uint32
	for j := pos + 1; j < len(t.merged) && t.merged[j] >= 0; j++ {
		out = append(out, uint32(t.merged[j]))
	}
	return out
}

// Keys returns every tabulated order z, ascending.
func (t *Table) Keys() []uint32 {
	var out []uint32
	for _, v := range t.merged {
		if v < 0 {
			out = append(out, uint32(-v))
		}
	}
	return out
}
