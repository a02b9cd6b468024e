package proof

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"prp-proof/modarith"
)

// NumberSpec is a parsed NUMBER= field: the modulus k*2^n+c and the known
// factors that divide it.
type NumberSpec struct {
	Raw     string
	Modulus modarith.Modulus
	Factors []*big.Int
}

// Forms tried in order; each is anchored at the start and followed by
// optional "/factor" suffixes.
var numberForms = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`^M(\d+)`), "mersenne"},
	{regexp.MustCompile(`^\(M(\d+)\)`), "mersenne"},
	{regexp.MustCompile(`^F(\d+)`), "fermat"},
	{regexp.MustCompile(`^\(F(\d+)\)`), "fermat"},
	{regexp.MustCompile(`^2\^(\d+)([+-]\d+)`), "power"},
	{regexp.MustCompile(`^\(2\^(\d+)([+-]\d+)\)`), "power"},
	{regexp.MustCompile(`^(\d+(?:\.\d*)?(?:[eE][+-]?\d+)?)\*2\^(\d+)([+-]\d+)`), "kpower"},
	{regexp.MustCompile(`^\((\d+(?:\.\d*)?(?:[eE][+-]?\d+)?)\*2\^(\d+)([+-]\d+)\)`), "kpower"},
}

var factorSuffix = regexp.MustCompile(`^/(\d+)`)

// ParseNumber parses Mn, Fn, 2^n+c and k*2^n+c, each optionally wrapped in
// parentheses and followed by "/factor" suffixes.
func ParseNumber(s string) (NumberSpec, error) {
	spec := NumberSpec{Raw: s}
	raw := strings.TrimSpace(s)

	var (
		m    []string
		kind string
	)
	for _, f := range numberForms {
		if m = f.re.FindStringSubmatch(raw); m != nil {
			kind = f.kind
			break
		}
	}
	if m == nil {
		return spec, errorf(KindNumberSpecParse, "number", "unrecognized number %q", s)
	}

	mod := modarith.Modulus{K: 1}
	var err error
	switch kind {
	case "mersenne":
		mod.N, err = parseExponent(m[1])
		mod.C = -1
	case "fermat":
		var e uint32
		if e, err = parseExponent(m[1]); err == nil && e > 31 {
			err = errorf(KindNumberSpecParse, "number", "fermat index %d too large", e)
		}
		mod.N = 1 << e
		mod.C = 1
	case "power":
		if mod.N, err = parseExponent(m[1]); err == nil {
			mod.C, err = parseAddend(m[2])
		}
	case "kpower":
		if mod.K, err = parseMultiplier(m[1]); err == nil {
			if mod.N, err = parseExponent(m[2]); err == nil {
				mod.C, err = parseAddend(m[3])
			}
		}
	}
	if err != nil {
		return spec, err
	}
	if err := mod.Validate(); err != nil {
		return spec, newError(KindNumberSpecParse, "number", err)
	}
	spec.Modulus = mod

	rest := raw[len(m[0]):]
	for rest != "" {
		fm := factorSuffix.FindStringSubmatch(rest)
		if fm == nil {
			return spec, errorf(KindNumberSpecParse, "number", "unexpected %q after number", rest)
		}
		f, _ := new(big.Int).SetString(fm[1], 10)
		if f.Sign() == 0 {
			return spec, errorf(KindNumberSpecParse, "number", "zero known factor")
		}
		spec.Factors = append(spec.Factors, f)
		rest = rest[len(fm[0]):]
	}
	return spec, nil
}

func parseExponent(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, errorf(KindNumberSpecParse, "number", "bad exponent %q", s)
	}
	return uint32(n), nil
}

func parseAddend(s string) (int64, error) {
	c, err := strconv.ParseInt(s, 10, 64)
	if err != nil || c == 0 {
		return 0, errorf(KindNumberSpecParse, "number", "bad addend %q", s)
	}
	return c, nil
}

func parseMultiplier(s string) (uint64, error) {
	k, err := strconv.ParseFloat(s, 64)
	if err != nil || k < 1 || k > modarith.MaxK || k != math.Trunc(k) {
		return 0, errorf(KindNumberSpecParse, "number", "bad multiplier %q", s)
	}
	return uint64(k), nil
}

// FactorsProduct is the product of the known factors, 1 when there are none.
func (s NumberSpec) FactorsProduct() *big.Int {
	p := big.NewInt(1)
	for _, f := range s.Factors {
		p.Mul(p, f)
	}
	return p
}

// Cofactor returns N divided by the known factors, or a FactorValidation
// error when they do not divide N.
func (s NumberSpec) Cofactor() (*big.Int, error) {
	n := s.Modulus.Int()
	kf := s.FactorsProduct()
	q, r := new(big.Int).QuoRem(n, kf, new(big.Int))
	if r.Sign() != 0 {
		return nil, errorf(KindFactorValidation, "factors", "%s does not divide %s", kf, s.Modulus)
	}
	return q, nil
}
