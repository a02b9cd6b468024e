package proof

import (
	"fmt"
	"strings"
)

// Halving decides how an odd distance T is split. Prover and verifier must
// agree: the middle residue a prover writes is only correct for the
// strategy it used.
type Halving int

const (
	// SquareB squares the right endpoint: B <- B^2 and T <- (T+1)/2.
	SquareB Halving = iota
	// SquareA squares the left endpoint: A <- A^2 and T <- (T-1)/2.
	SquareA
)

func (h Halving) String() string {
	switch h {
	case SquareB:
		return "square-b"
	case SquareA:
		return "square-a"
	}
	return fmt.Sprintf("halving(%d)", int(h))
}

// ParseHalving accepts the String forms, case-insensitively.
func ParseHalving(s string) (Halving, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square-b", "b", "":
		return SquareB, nil
	case "square-a", "a":
		return SquareA, nil
	}
	return 0, fmt.Errorf("proof: unknown halving strategy %q", s)
}

// Halve returns the distance of the next round and which endpoint has to be
// squared first so that A^(2^t) = B keeps holding.
func (h Halving) Halve(t uint64) (next uint64, squareA, squareB bool) {
	if t%2 == 0 {
		return t / 2, false, false
	}
	if h == SquareA {
		return (t - 1) / 2, true, false
	}
	return (t + 1) / 2, false, true
}

// FinalDistance is the number of squarings left after rounds halvings of a
// segment of length t, the delegated work of a proof.
func (h Halving) FinalDistance(t uint64, rounds int) uint64 {
	for i := 0; i < rounds; i++ {
		t, _, _ = h.Halve(t)
	}
	return t
}
