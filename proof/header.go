package proof

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"prp-proof/modarith"
)

const (
	MinHashBits = 32
	MaxHashBits = 64
	MaxPower    = 15
	DefaultBase = 3

	magic = "PRP PROOF"
)

// Header is the text preamble of a proof file.
type Header struct {
	Version         int
	HashBits        int
	Power           int
	PowerMultiplier int
	Base            uint32
	Number          NumberSpec

	// Size is the number of bytes the header occupies, the offset of the
	// first residue.
	Size int64
}

// Modulus is shorthand for h.Number.Modulus.
func (h *Header) Modulus() modarith.Modulus { return h.Number.Modulus }

// TopK is the number of squarings the proof covers. Version 1 proofs round
// the exponent up to a multiple of PowerMultiplier*2^Power.
func (h *Header) TopK() uint64 {
	n := uint64(h.Number.Modulus.N)
	if h.Version == 1 {
		step := uint64(h.PowerMultiplier) << uint(h.Power)
		return (n + step - 1) / step * step
	}
	return n
}

// ExcessSquarings is TopK minus the exponent n.
func (h *Header) ExcessSquarings() uint64 {
	return h.TopK() - uint64(h.Number.Modulus.N)
}

// ResidueCount is the number of residues in a complete file.
func (h *Header) ResidueCount() int {
	return h.PowerMultiplier * (h.Power + 1)
}

// ExpectedSize is the size in bytes of a complete proof file.
func (h *Header) ExpectedSize() int64 {
	return h.Size + int64(h.ResidueCount())*int64(h.Number.Modulus.ByteWidth())
}

// Summary is the one-line description logged before verification starts.
func (h *Header) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Proof power = %d", h.Power)
	if h.PowerMultiplier > 1 {
		fmt.Fprintf(&b, ", power multiplier = %d", h.PowerMultiplier)
	}
	if h.Version == 1 {
		fmt.Fprintf(&b, ", TopK = %d", h.TopK())
	}
	fmt.Fprintf(&b, ", hash length = %d", h.HashBits)
	return b.String()
}

func (h *Header) String() string {
	return fmt.Sprintf("Verifying proof for %s. %s", h.Number.Raw, h.Summary())
}

// headerScanner reads header lines while counting consumed bytes.
type headerScanner struct {
	r    *bufio.Reader
	size int64
}

func (s *headerScanner) line(field string) (string, error) {
	l, err := s.r.ReadString('\n')
	s.size += int64(len(l))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", errorf(KindHeaderParse, field, "read: %v", err)
	}
	return strings.TrimRight(l, "\r\n"), nil
}

// peek reports whether the next line starts with prefix without consuming it.
func (s *headerScanner) peek(prefix string) bool {
	b, _ := s.r.Peek(len(prefix))
	return string(b) == prefix
}

func (s *headerScanner) intField(prefix, field string, lo, hi int) (int, error) {
	l, err := s.line(field)
	if err != nil {
		return 0, err
	}
	v, ok := strings.CutPrefix(l, prefix)
	if !ok {
		return 0, errorf(KindHeaderParse, field, "expected %q, got %q", prefix, l)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, newError(KindHeaderParse, field, errors.Wrapf(err, "parse %q", v))
	}
	if n < lo || n > hi {
		return 0, errorf(KindHeaderParse, field, "%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

// ReadHeader parses a proof header from r. r is left positioned at the
// first residue, so callers pass the same *bufio.Reader to NewReader.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	s := &headerScanner{r: r}
	h := &Header{PowerMultiplier: 1, Base: DefaultBase}

	l, err := s.line("magic")
	if err != nil {
		return nil, err
	}
	if l != magic {
		return nil, errorf(KindHeaderParse, "magic", "expected %q, got %q", magic, l)
	}
	if h.Version, err = s.intField("VERSION=", "version", 1, 2); err != nil {
		return nil, err
	}
	if h.HashBits, err = s.intField("HASHSIZE=", "hashsize", MinHashBits, MaxHashBits); err != nil {
		return nil, err
	}
	if h.Power, err = s.intField("POWER=", "power", 1, MaxPower); err != nil {
		return nil, err
	}
	if s.peek("x") {
		if h.PowerMultiplier, err = s.intField("x", "multiplier", 1, 1<<16); err != nil {
			return nil, err
		}
	}
	if s.peek("BASE=") {
		base, err := s.intField("BASE=", "base", 2, 1<<31-1)
		if err != nil {
			return nil, err
		}
		h.Base = uint32(base)
	}

	l, err = s.line("number")
	if err != nil {
		return nil, err
	}
	raw, ok := strings.CutPrefix(l, "NUMBER=")
	if !ok || raw == "" {
		return nil, errorf(KindHeaderParse, "number", "expected NUMBER=, got %q", l)
	}
	if h.Number, err = ParseNumber(raw); err != nil {
		return nil, err
	}
	h.Size = s.size
	return h, nil
}

// WriteHeader writes h in the form ReadHeader accepts and sets h.Size.
// Optional lines are only written when they differ from their defaults.
func WriteHeader(w io.Writer, h *Header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nVERSION=%d\nHASHSIZE=%d\nPOWER=%d\n", magic, h.Version, h.HashBits, h.Power)
	if h.PowerMultiplier > 1 {
		fmt.Fprintf(&b, "x%d\n", h.PowerMultiplier)
	}
	if h.Base != 0 && h.Base != DefaultBase {
		fmt.Fprintf(&b, "BASE=%d\n", h.Base)
	}
	fmt.Fprintf(&b, "NUMBER=%s\n", h.Number.Raw)
	n, err := io.WriteString(w, b.String())
	if err != nil {
		return errors.Wrap(err, "proof: write header")
	}
	h.Size = int64(n)
	return nil
}
