package proof

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/utils"

	"prp-proof/modarith"
)

const checkEvery = 1 << 12

// Run squares X Squarings times on eng and returns the hash of the result.
// eng must be built for the modulus the task came from. progress, when set,
// is called periodically and once at the end.
func (d *Delegation) Run(ctx context.Context, eng modarith.Engine, progress func(done, total uint64)) (Hash, error) {
	x := eng.New()
	eng.SetBig(x, d.X)
	for i := uint64(0); i < d.Squarings; i++ {
		if i%checkEvery == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return Hash{}, newError(KindCanceled, "delegated", err)
			}
			if progress != nil {
				progress(i, d.Squarings)
			}
		}
		eng.Square(x)
	}
	if progress != nil {
		progress(d.Squarings, d.Squarings)
	}
	return NewHasher(eng.Modulus()).Root(eng.Big(x)), nil
}

// Check reports whether a returned hash completes the proof.
func (d *Delegation) Check(h Hash) bool { return h == d.Expected }

// rerandomizer draws the secret exponent r. The top bit is forced so r is
// never small; a seed makes it reproducible.
func rerandomizer(seed []byte) (uint64, error) {
	var (
		prng utils.PRNG
		err  error
	)
	if seed != nil {
		prng, err = utils.NewKeyedPRNG(seed)
	} else {
		prng, err = utils.NewPRNG()
	}
	if err != nil {
		return 0, errors.Wrap(err, "proof: create prng")
	}
	var buf [8]byte
	if _, err := prng.Read(buf[:]); err != nil {
		return 0, errors.Wrap(err, "proof: draw exponent")
	}
	return binary.LittleEndian.Uint64(buf[:]) | 1<<63, nil
}
