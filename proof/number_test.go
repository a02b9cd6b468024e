package proof_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prp-proof/modarith"
	"prp-proof/proof"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in      string
		mod     modarith.Modulus
		factors []int64
	}{
		{"M31", modarith.Modulus{K: 1, N: 31, C: -1}, nil},
		{"(M127)", modarith.Modulus{K: 1, N: 127, C: -1}, nil},
		{"M11/23", modarith.Modulus{K: 1, N: 11, C: -1}, []int64{23}},
		{"M29/233/1103", modarith.Modulus{K: 1, N: 29, C: -1}, []int64{233, 1103}},
		{"F5", modarith.Modulus{K: 1, N: 32, C: 1}, nil},
		{"(F4)/641", modarith.Modulus{K: 1, N: 16, C: 1}, []int64{641}},
		{"2^89-1", modarith.Modulus{K: 1, N: 89, C: -1}, nil},
		{"(2^100+277)", modarith.Modulus{K: 1, N: 100, C: 277}, nil},
		{"3*2^5+1", modarith.Modulus{K: 3, N: 5, C: 1}, nil},
		{"(1003*2^1000-1)/7", modarith.Modulus{K: 1003, N: 1000, C: -1}, []int64{7}},
		{"5.0*2^12+1", modarith.Modulus{K: 5, N: 12, C: 1}, nil},
	}
	for _, tc := range cases {
		spec, err := proof.ParseNumber(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.mod, spec.Modulus, tc.in)
		assert.Equal(t, tc.in, spec.Raw)
		require.Len(t, spec.Factors, len(tc.factors), tc.in)
		for i, f := range tc.factors {
			assert.Equal(t, big.NewInt(f), spec.Factors[i], tc.in)
		}
	}
}

func TestParseNumberErrors(t *testing.T) {
	for _, in := range []string{
		"", "Q31", "M", "M0", "F32", "2^31", "2^31+0", "2.5*2^10+1",
		"0*2^10+1", "M31/", "M31/0", "M31x", "M31/7abc", "1e17*2^3+1",
	} {
		_, err := proof.ParseNumber(in)
		assert.ErrorIs(t, err, proof.ErrNumberSpecParse, "%q", in)
	}
}

func TestCofactor(t *testing.T) {
	spec, err := proof.ParseNumber("M11/23")
	require.NoError(t, err)
	q, err := spec.Cofactor()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(89), q)
	assert.Equal(t, big.NewInt(24), proof.RecoveredPower(spec))

	spec, err = proof.ParseNumber("M31/7")
	require.NoError(t, err)
	_, err = spec.Cofactor()
	assert.ErrorIs(t, err, proof.ErrFactorValidation)
}
