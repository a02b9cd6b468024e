// Command rootsgen writes the tables embedded by package roots: the prime
// gaps used for trial division and the primes grouped by the
// multiplicative order of 2.
//
//	go run ./cmd/rootsgen -out roots
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cznic/mathutil"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/ring"
)

const header = "# Code generated by cmd/rootsgen. DO NOT EDIT.\n"

func main() {
	out := flag.String("out", "roots", "directory to write rootsdata.txt and gaps.go into")
	orderBits := flag.Uint("order-bits", 20, "tabulate odd primes below 2^order-bits")
	gapBits := flag.Uint("gap-bits", 15, "trial division primes below 2^gap-bits")
	flag.Parse()

	log.SetHandler(cli.Default)
	if *gapBits > 16 || *orderBits > 31 {
		log.Fatalf("bounds too large: gap-bits <= 16, order-bits <= 31")
	}

	gaps, err := Gaps(primesBelow(1 << *gapBits))
	if err != nil {
		log.Fatalf("gaps: %v", err)
	}
	src, err := GapsSource(gaps, *gapBits)
	if err != nil {
		log.Fatalf("gaps: %v", err)
	}
	if err := os.WriteFile(filepath.Join(*out, "gaps.go"), src, 0o644); err != nil {
		log.Fatalf("write gaps: %v", err)
	}

	groups := OrderGroups(primesBelow(1 << *orderBits))
	data := OrderTable(groups, 1<<*orderBits)
	if err := os.WriteFile(filepath.Join(*out, "rootsdata.txt"), data, 0o644); err != nil {
		log.Fatalf("write table: %v", err)
	}
	log.WithFields(log.Fields{"gaps": len(gaps), "orders": len(groups), "bytes": len(data)}).Info("tables written")
}

// primesBelow sieves the primes below n.
func primesBelow(n uint32) []uint32 {
	composite := make([]bool, n)
	var out []uint32
	for i := uint32(2); i < n; i++ {
		if composite[i] {
			continue
		}
		out = append(out, i)
		for j := uint64(i) * uint64(i); j < uint64(n); j += uint64(i) {
			composite[j] = true
		}
	}
	return out
}

// Gaps turns ascending primes into differences starting from 0.
func Gaps(primes []uint32) ([]uint8, error) {
	out := make([]uint8, len(primes))
	prev := uint32(0)
	for i, p := range primes {
		d := p - prev
		if d > 255 {
			return nil, errors.Errorf("gap %d before %d does not fit a byte", d, p)
		}
		out[i] = uint8(d)
		prev = p
	}
	return out, nil
}

// GapsSource renders gaps as the roots package's gaps.go.
func GapsSource(gaps []uint8, bits uint) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by cmd/rootsgen. DO NOT EDIT.\n\npackage roots\n\n")
	fmt.Fprintf(&b, "// gaps holds the differences between consecutive primes below 2^%d, starting\n", bits)
	b.WriteString("// from 0, so a running sum over gaps yields 2, 3, 5, 7, ...\n")
	b.WriteString("var gaps = [...]uint8{\n")
	for i := 0; i < len(gaps); i += 32 {
		b.WriteByte('\t')
		for j := i; j < min(i+32, len(gaps)); j++ {
			if j > i {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(int(gaps[j])))
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return format.Source(b.Bytes())
}

// Order returns the multiplicative order of 2 modulo the odd prime p.
func Order(p uint32) uint32 {
	z := p - 1
	for _, term := range mathutil.FactorInt(p - 1) {
		q := term.Prime
		for z%q == 0 && ring.ModExp(2, uint64(z/q), uint64(p)) == 1 {
			z /= q
		}
	}
	return z
}

// OrderGroups maps each order z to the ascending odd primes having it.
func OrderGroups(primes []uint32) map[uint32][]uint32 {
	groups := make(map[uint32][]uint32)
	for _, p := range primes {
		if p == 2 {
			continue
		}
		z := Order(p)
		groups[z] = append(groups[z], p)
	}
	return groups
}

// OrderTable renders groups as rootsdata.txt: one "-z,p1,p2,...," line per
// order, orders ascending.
func OrderTable(groups map[uint32][]uint32, limit uint32) []byte {
	keys := make([]uint32, 0, len(groups))
	for z := range groups {
		keys = append(keys, z)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b bytes.Buffer
	b.WriteString(header)
	fmt.Fprintf(&b, "# -z followed by the odd primes p < %d with znorder(Mod(2,p)) == z.\n", limit)
	for _, z := range keys {
		fmt.Fprintf(&b, "-%d,", z)
		for _, p := range groups[z] {
			fmt.Fprintf(&b, "%d,", p)
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}
