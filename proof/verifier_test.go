package proof_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/internal/prooftest"
	"prp-proof/modarith"
	"prp-proof/proof"
)

var quiet = &log.Logger{Handler: discard.Default, Level: log.DebugLevel}

func newVerifier(t *testing.T, opts proof.Options) *proof.Verifier {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	v, err := proof.New(opts)
	require.NoError(t, err)
	return v
}

func verify(t *testing.T, opts proof.Options, data []byte) (*proof.Result, error) {
	t.Helper()
	return newVerifier(t, opts).Verify(context.Background(), bytes.NewReader(data), int64(len(data)))
}

func TestVerifyMersenneAccepts(t *testing.T) {
	for _, strategy := range []proof.Halving{proof.SquareB, proof.SquareA} {
		for power := 1; power <= 8; power++ {
			p := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: power, Strategy: strategy})
			res, err := verify(t, proof.Options{Strategy: strategy}, p.Data)
			require.NoError(t, err, "%s power %d", strategy, power)

			assert.True(t, res.Valid, "%s power %d", strategy, power)
			assert.Equal(t, proof.Positive, res.PRP)
			assert.True(t, res.Hardened)
			assert.Equal(t, "0000000000000009", res.Type3Res64)
			assert.Equal(t, "0000000000000001", res.Type5Res64)
			assert.Equal(t, uint64(31), res.TopK)
			assert.Zero(t, res.ExcessSquarings)
			assert.Equal(t, power+1, res.ResiduesRead)
			require.Len(t, res.Challenges, 1)
			assert.Len(t, res.Challenges[0], power-1)
			assert.Equal(t, strategy.FinalDistance(31, power), res.CertificationCost)
			assert.Equal(t, res.HashA, res.HashB)
		}
	}
}

func TestVerifyFinalDistance(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 6})
	res, err := verify(t, proof.Options{}, p.Data)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	// 61 -> 31 -> 16 -> 8 -> 4 -> 2 -> 1
	assert.Equal(t, uint64(1), res.CertificationCost)
	assert.Equal(t, uint64(1), res.Delegation.Squarings)
	assert.Greater(t, res.ServerCost, uint64(61))
	// 2^61-1 is prime, so the exponent is all of N-1
	assert.Equal(t, 61, res.HardeningBits)
}

func TestVerifyRejectsTamperedResidue(t *testing.T) {
	const power = 4
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: power})
	for i := 0; i <= power; i++ {
		res, err := verify(t, proof.Options{}, p.FlipBit(i, 3))
		require.NoError(t, err, "residue %d", i)
		assert.False(t, res.Valid, "residue %d", i)
	}
}

func TestVerifyRejectsOtherStrategy(t *testing.T) {
	// 31 is odd, so the first round already depends on the strategy
	p := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 3, Strategy: proof.SquareA})
	res, err := verify(t, proof.Options{Strategy: proof.SquareB}, p.Data)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = verify(t, proof.Options{Strategy: proof.SquareA}, p.Data)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestVerifyClassification(t *testing.T) {
	cases := []struct {
		name     string
		spec     prooftest.Spec
		want     proof.PRPStatus
		hardened bool
	}{
		{"prime cofactor", prooftest.Spec{Number: "M11/23", Power: 3}, proof.Positive, true},
		{"composite", prooftest.Spec{Number: "M29", Power: 3}, proof.Negative, true},
		{"composite cofactor", prooftest.Spec{Number: "M29/233", Power: 2}, proof.Negative, true},
		{"square root of one", prooftest.Spec{Number: "M11", Power: 2, Base: 5}, proof.ObscuredPositive, true},
		{"proth", prooftest.Spec{Number: "3*2^5+1", Power: 2}, proof.Positive, false},
		{"parenthesized proth", prooftest.Spec{Number: "(3*2^5+1)", Power: 2, Strategy: proof.SquareA}, proof.Positive, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := prooftest.MustBuild(tc.spec)
			res, err := verify(t, proof.Options{Strategy: tc.spec.Strategy}, p.Data)
			require.NoError(t, err)
			assert.True(t, res.Valid)
			assert.Equal(t, tc.want, res.PRP)
			assert.Equal(t, tc.hardened, res.Hardened)
		})
	}
}

func TestVerifyVersionOneExcessSquarings(t *testing.T) {
	cases := []struct {
		spec   prooftest.Spec
		topK   uint64
		excess uint64
		want   proof.PRPStatus
	}{
		{prooftest.Spec{Number: "M31", Version: 1, Power: 3}, 32, 1, proof.Positive},
		{prooftest.Spec{Number: "M61", Version: 1, Power: 4}, 64, 3, proof.Positive},
		{prooftest.Spec{Number: "M31", Version: 1, Power: 2, Multiplier: 3}, 36, 5, proof.Positive},
		{prooftest.Spec{Number: "M29", Version: 1, Power: 3}, 32, 3, proof.Negative},
		{prooftest.Spec{Number: "M11/23", Version: 1, Power: 2}, 12, 1, proof.Positive},
	}
	for _, tc := range cases {
		p := prooftest.MustBuild(tc.spec)
		res, err := verify(t, proof.Options{}, p.Data)
		require.NoError(t, err, tc.spec.Number)
		assert.True(t, res.Valid, tc.spec.Number)
		assert.Equal(t, tc.topK, res.TopK, tc.spec.Number)
		assert.Equal(t, tc.excess, res.ExcessSquarings, tc.spec.Number)
		assert.Equal(t, tc.want, res.PRP, tc.spec.Number)
		assert.Empty(t, res.Type3Res64)
		assert.Empty(t, res.Type5Res64)
	}
}

func TestVerifyPowerMultiplier(t *testing.T) {
	for _, strategy := range []proof.Halving{proof.SquareB, proof.SquareA} {
		p := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 2, Multiplier: 3, Strategy: strategy})
		res, err := verify(t, proof.Options{Strategy: strategy}, p.Data)
		require.NoError(t, err)
		assert.True(t, res.Valid, strategy.String())
		assert.Equal(t, proof.Positive, res.PRP)
		assert.Equal(t, 9, res.ResiduesRead)
		assert.Len(t, res.RootHashes, 3)
		assert.Len(t, res.Challenges, 3)
	}

	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 3, Multiplier: 2})
	for _, i := range []int{2, 4} {
		res, err := verify(t, proof.Options{}, p.FlipBit(i, 0))
		require.NoError(t, err)
		assert.False(t, res.Valid, "residue %d", i)
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 5, HashBits: 40})
	first, err := verify(t, proof.Options{}, p.Data)
	require.NoError(t, err)
	second, err := verify(t, proof.Options{}, p.Data)
	require.NoError(t, err)

	assert.Equal(t, first.RootHashes, second.RootHashes)
	assert.Equal(t, first.Challenges, second.Challenges)
	assert.Equal(t, first.HashB, second.HashB)
	for _, h := range first.Challenges[0] {
		assert.Less(t, h, uint64(1)<<40)
	}
}

func TestVerifyPartial(t *testing.T) {
	const power = 5
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: power})
	opts := proof.Options{Partial: true}

	t.Run("preallocated", func(t *testing.T) {
		data := p.Preallocated(3)
		res, err := newVerifier(t, opts).Verify(context.Background(), bytes.NewReader(data), int64(p.Offset(3)))
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 2, res.PartialPower)
		assert.Len(t, res.Challenges[0], 2)
		assert.Equal(t, power+1, res.ResiduesRead)
	})

	t.Run("truncated", func(t *testing.T) {
		data := p.Data[:p.Offset(4)]
		res, err := verify(t, opts, data)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 3, res.PartialPower)
	})

	t.Run("complete", func(t *testing.T) {
		res, err := verify(t, opts, p.Data)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Zero(t, res.PartialPower)
	})

	t.Run("too few residues", func(t *testing.T) {
		_, err := verify(t, opts, p.Data[:p.Offset(1)])
		require.ErrorIs(t, err, proof.ErrTooFewResidues)
	})

	t.Run("size required", func(t *testing.T) {
		_, err := newVerifier(t, opts).Verify(context.Background(), bytes.NewReader(p.Data), -1)
		require.ErrorIs(t, err, proof.ErrSetup)
	})
}

func TestVerifyRerandomized(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 4})
	plain, err := verify(t, proof.Options{}, p.Data)
	require.NoError(t, err)

	seed := []byte("delegation seed")
	a, err := verify(t, proof.Options{Rerandomize: true, Seed: seed}, p.Data)
	require.NoError(t, err)
	b, err := verify(t, proof.Options{Rerandomize: true, Seed: seed}, p.Data)
	require.NoError(t, err)

	assert.True(t, a.Valid)
	assert.True(t, a.Delegation.Rerandomized)
	assert.Equal(t, a.HashB, b.HashB)
	assert.NotEqual(t, plain.HashB, a.HashB)
	assert.Equal(t, plain.PRP, a.PRP)

	random, err := verify(t, proof.Options{Rerandomize: true}, p.Data)
	require.NoError(t, err)
	assert.True(t, random.Valid)
}

func TestDelegationRunsOnFreshEngine(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 2})
	var calls [][2]uint64
	res, err := verify(t, proof.Options{Progress: func(done, total uint64) {
		calls = append(calls, [2]uint64{done, total})
	}}, p.Data)
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, last[0], last[1])
	assert.Equal(t, res.CertificationCost, last[1])

	eng, err := modarith.NewDefault(p.Header.Modulus())
	require.NoError(t, err)
	h, err := res.Delegation.Run(context.Background(), eng, nil)
	require.NoError(t, err)
	assert.True(t, res.Delegation.Check(h))
	assert.Equal(t, res.Delegation.Squarings, modarith.Squarings(eng.Ops()))
}

type faultyEngine struct{ modarith.Engine }

func (faultyEngine) Err() error { return modarith.ErrInconsistent }

func faulty(m modarith.Modulus) (modarith.Engine, error) {
	e, err := modarith.NewDefault(m)
	return faultyEngine{e}, err
}

func TestVerifyEngineErrors(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 3})

	res, err := verify(t, proof.Options{NewEngine: faulty, Strict: true}, p.Data)
	require.ErrorIs(t, err, proof.ErrArithmeticEngine)
	require.ErrorIs(t, err, modarith.ErrInconsistent)
	assert.False(t, res.Valid)

	res, err = verify(t, proof.Options{NewEngine: faulty}, p.Data)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.ErrorIs(t, res.EngineErr, modarith.ErrInconsistent)
}

func TestVerifyFailures(t *testing.T) {
	good := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 2})

	_, err := verify(t, proof.Options{}, []byte("PRP PROOF\nVERSION=3\n"))
	assert.ErrorIs(t, err, proof.ErrHeaderParse)

	_, err = verify(t, proof.Options{}, []byte("PRP PROOF\nVERSION=2\nHASHSIZE=64\nPOWER=2\nNUMBER=Q31\n"))
	assert.ErrorIs(t, err, proof.ErrNumberSpecParse)

	bad := prooftest.MustBuild(prooftest.Spec{Number: "M31", Power: 2})
	bad.Data = bytes.Replace(bad.Data, []byte("NUMBER=M31\n"), []byte("NUMBER=M31/7\n"), 1)
	res, err := verify(t, proof.Options{}, bad.Data)
	assert.ErrorIs(t, err, proof.ErrFactorValidation)
	require.NotNil(t, res)
	assert.Zero(t, res.ResiduesRead)

	_, err = verify(t, proof.Options{}, good.Data[:good.Offset(2)+1])
	assert.ErrorIs(t, err, proof.ErrResidueRead)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newVerifier(t, proof.Options{Logger: quiet}).Verify(ctx, bytes.NewReader(good.Data), -1)
	assert.ErrorIs(t, err, proof.ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyFile(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 3})
	path := filepath.Join(t.TempDir(), "M61.proof")
	require.NoError(t, prooftest.WriteFile(path, p.Data))

	res, err := newVerifier(t, proof.Options{}).VerifyFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "proof accepted, positive PRP", res.Verdict())

	_, err = newVerifier(t, proof.Options{}).VerifyFile(context.Background(), path+".missing")
	assert.ErrorIs(t, err, proof.ErrSetup)
}

func TestVerifyRecordsStageTimings(t *testing.T) {
	p := prooftest.MustBuild(prooftest.Spec{Number: "M61", Power: 3})
	res, err := verify(t, proof.Options{}, p.Data)
	require.NoError(t, err)

	var labels []string
	for _, e := range res.Timings {
		labels = append(labels, e.Label)
		assert.GreaterOrEqual(t, e.Dur, time.Duration(0))
	}
	assert.Equal(t, []string{"header", "setup", "segments", "recovery", "hardening", "delegation"}, labels)
}
