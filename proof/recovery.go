package proof

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"prp-proof/modarith"
	"prp-proof/roots"
)

// A Fermat PRP test of N/kf with base a ends in 1. The prover instead
// computes (a^k)^(2^(n+x)) for x excess squarings, which for a PRP equals
// (a^(kf-c))^(2^x) mod N. Recovery divides that value back out of the final
// B; the result is 1 exactly when the test was positive.

// powMod returns base^e mod n; a negative e yields the inverse power.
func powMod(base uint32, e, n *big.Int) (*big.Int, error) {
	b := new(big.Int).SetUint64(uint64(base))
	x := new(big.Int).Exp(b, new(big.Int).Abs(e), n)
	if e.Sign() < 0 {
		return invert(x, n)
	}
	return x, nil
}

func invert(x, n *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(x, n)
	if inv == nil {
		return nil, errors.Errorf("%s is not invertible modulo N", x)
	}
	return inv, nil
}

// RecoveredPower is the exponent e with a^e being the final residue of a
// positive test before excess squarings: kf - c.
func RecoveredPower(spec NumberSpec) *big.Int {
	return new(big.Int).Sub(spec.FactorsProduct(), big.NewInt(spec.Modulus.C))
}

func stateRecover(r *run) stateFn {
	defer r.prof.Track(time.Now(), "recovery")
	hdr, eng := r.hdr, r.eng
	mod := hdr.Modulus()
	n := mod.Int()
	c := big.NewInt(mod.C)

	b := eng.New()
	eng.SetBig(b, r.finalB)
	m := eng.New()

	if excess := hdr.ExcessSquarings(); excess > 0 {
		x, err := powMod(hdr.Base, RecoveredPower(hdr.Number), n)
		if err != nil {
			return r.fail(newError(KindSetup, "recovery", err))
		}
		// squaring a small value in plain integers is cheap, and it keeps
		// the engine away from operands with long runs of zero bits
		g := uint64(0)
		for ; g < excess && x.BitLen() <= 256; g++ {
			x.Mul(x, x)
		}
		if x, err = invert(x, n); err != nil {
			return r.fail(newError(KindSetup, "recovery", err))
		}
		eng.SetBig(m, x)
		for ; g < excess; g++ {
			eng.Square(m)
		}
		if excess <= 4 {
			eng.MulCarefully(m, b)
		} else {
			eng.Mul(m, b)
		}
	} else {
		x, err := powMod(hdr.Base, new(big.Int).Sub(big.NewInt(1), c), n)
		if err == nil {
			x, err = invert(x, n)
		}
		if err != nil {
			return r.fail(newError(KindSetup, "recovery", err))
		}
		eng.SetBig(m, x)
		eng.MulCarefully(m, b)
		r.res.Type5Res64 = modarith.Res64(eng.Big(m))
		r.entry().Infof("Type-5 res64: %s", r.res.Type5Res64)

		if len(hdr.Number.Factors) > 0 {
			x, err := powMod(hdr.Base, RecoveredPower(hdr.Number), n)
			if err == nil {
				x, err = invert(x, n)
			}
			if err != nil {
				return r.fail(newError(KindSetup, "recovery", err))
			}
			eng.SetBig(m, x)
			eng.Mul(m, b)
		}
	}
	r.recovered = m
	return stateHarden
}

func stateHarden(r *run) stateFn {
	defer r.prof.Track(time.Now(), "hardening")
	hdr, eng := r.hdr, r.eng
	mod := hdr.Modulus()

	exp := big.NewInt(2)
	if mod.IsMersenne() {
		var err error
		if exp, err = r.v.hardener.Exponent(mod.N); err != nil {
			if errors.Is(err, roots.ErrCapacityExceeded) {
				return r.fail(newError(KindDivisorCapacityExceeded, "hardening", err))
			}
			return r.fail(newError(KindSetup, "hardening", err))
		}
		r.res.Hardened = true
	} else {
		r.entry().Warn("Root-of-unity hardening not available for this number")
	}

	before := eng.Ops()
	hardened := eng.New()
	eng.Copy(hardened, r.recovered)
	eng.Exp(hardened, exp)
	r.res.HardeningBits = exp.BitLen()
	r.res.HardeningCost = modarith.Squarings(eng.Ops() - before)
	r.entry().Infof("Proof hardening product-of-roots %d bits", r.res.HardeningBits)
	r.entry().Infof("Proof hardening cost %d squarings", r.res.HardeningCost)

	r.res.PRP = classify(eng.Big(hardened), eng.Big(r.recovered), r.cofactor)
	r.entry().Infof("Verifying a %s PRP test", r.res.PRP)
	return stateFinalCheck
}

// classify compares the hardened and raw recovered residues with 1 modulo
// the cofactor.
func classify(hardened, raw, cofactor *big.Int) PRPStatus {
	one := big.NewInt(1)
	if hardened.Mod(hardened, cofactor).Cmp(one) != 0 {
		return Negative
	}
	if raw.Mod(raw, cofactor).Cmp(one) != 0 {
		return ObscuredPositive
	}
	return Positive
}
