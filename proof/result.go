package proof

import (
	"fmt"
	"math/big"

	"prp-proof/prof"
)

// PRPStatus is the primality verdict carried by a proof.
type PRPStatus int

const (
	Negative PRPStatus = iota
	Positive
	// ObscuredPositive is a positive result whose raw residue was a
	// non-trivial root of unity, one that only hardening mapped back to 1.
	ObscuredPositive
)

func (s PRPStatus) String() string {
	switch s {
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	case ObscuredPositive:
		return "root-of-unity obscured positive"
	}
	return fmt.Sprintf("prpstatus(%d)", int(s))
}

// Result reports everything learned while verifying a proof. When Verify
// returns an error the Result, if non-nil, holds the diagnostics gathered up
// to the failure and Valid is false.
type Result struct {
	Header *Header

	// Valid is set when hash(A^(2^T)) equals hash(B).
	Valid bool
	PRP   PRPStatus

	// Hardened is false when no root-of-unity hardening exists for the
	// modulus and only the factor 2 was applied.
	Hardened      bool
	HardeningBits int
	HardeningCost uint64

	// Type3Res64 is only known when the prover did no excess squarings.
	Type3Res64 string
	Type5Res64 string

	TopK            uint64
	ExcessSquarings uint64
	// PartialPower is the number of rounds per segment when a partial
	// file was verified, zero otherwise.
	PartialPower int
	ResiduesRead int

	RootHashes []Hash
	Challenges [][]uint64
	HashA      Hash
	HashB      Hash

	// ServerCost is the work done before the delegated step, in squarings.
	ServerCost uint64
	// CertificationCost is the number of squarings delegated.
	CertificationCost uint64

	Delegation *Delegation
	// EngineErr is an arithmetic self-check failure tolerated because the
	// verifier was not strict.
	EngineErr error

	// Timings holds wall time per verification stage.
	Timings []prof.Entry
}

// Verdict is a one-line human readable outcome.
func (r *Result) Verdict() string {
	if !r.Valid {
		return "proof rejected"
	}
	return fmt.Sprintf("proof accepted, %s PRP", r.PRP)
}

// Delegation is the task handed to a third party: square X T times and
// return the hash of the result. The verifier runs it on itself.
type Delegation struct {
	X         *big.Int
	Squarings uint64
	Expected  Hash
	// Rerandomized is set when X and the expected value were raised to a
	// secret power first.
	Rerandomized bool
}
