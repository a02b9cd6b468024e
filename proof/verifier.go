// Package proof verifies PRP proofs for numbers of the form k*2^n+c.
//
// A proof file holds, per segment, the terminal residue B = A^(2^T) and the
// middle residues of a Pietrzak halving. The verifier folds each middle into
// A and B with hash-derived challenges until the remaining distance is small,
// then checks A^(2^T) = B by squaring. The same pass recovers the PRP
// residue from B and hardens it against root-of-unity forgeries.
package proof

import (
	"bufio"
	"context"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"prp-proof/modarith"
	"prp-proof/prof"
	"prp-proof/roots"
)

// Options configures a Verifier. The zero value verifies complete files
// with SquareB halving on the default engine.
type Options struct {
	Strategy Halving
	// Partial verifies a file whose tail has not been written yet at a
	// reduced power.
	Partial bool
	// Rerandomize raises A and B to a secret power before the delegated
	// step. Seed makes the power reproducible; nil draws a random one.
	Rerandomize bool
	Seed        []byte
	// Strict turns arithmetic self-check failures into errors instead of
	// warnings.
	Strict bool

	Logger log.Interface
	// Progress is called during the delegated squarings.
	Progress func(done, total uint64)

	NewEngine       modarith.Factory
	Hardener        *roots.Hardener
	DivisorCapacity int
}

// Verifier checks proofs. It holds no per-proof state and may be shared;
// each verification owns its own engine.
type Verifier struct {
	opts     Options
	log      log.Interface
	hardener *roots.Hardener
}

// New returns a Verifier for opts.
func New(opts Options) (*Verifier, error) {
	v := &Verifier{opts: opts, log: opts.Logger, hardener: opts.Hardener}
	if v.log == nil {
		v.log = log.Log
	}
	if v.opts.NewEngine == nil {
		v.opts.NewEngine = modarith.NewDefault
	}
	if v.hardener == nil {
		if opts.DivisorCapacity > 0 {
			h, err := roots.NewHardener(nil, 0, opts.DivisorCapacity)
			if err != nil {
				return nil, newError(KindSetup, "hardener", err)
			}
			v.hardener = h
		} else {
			v.hardener = roots.DefaultHardener()
		}
	}
	return v, nil
}

// VerifyFile verifies the proof stored at path.
func (v *Verifier) VerifyFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindSetup, "open", err)
	}
	defer f.Close()

	size := int64(-1)
	if v.opts.Partial {
		if size, err = GuessFileSize(f); err != nil {
			return nil, newError(KindSetup, "size", err)
		}
	}
	return v.Verify(ctx, f, size)
}

// Verify reads a proof from r. size is the number of meaningful bytes in
// the stream and is only consulted in partial mode.
func (v *Verifier) Verify(ctx context.Context, r io.Reader, size int64) (*Result, error) {
	if v.opts.Partial && size < 0 {
		return nil, errorf(KindSetup, "size", "partial verification needs the proof size")
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	run := &run{
		v:      v,
		ctx:    ctx,
		br:     br,
		size:   size,
		res:    &Result{},
		fields: log.Fields{},
	}
	for state := stateHeader; state != nil; {
		state = state(run)
	}
	run.res.Timings = run.prof.Entries()
	if run.rd != nil {
		run.res.ResiduesRead = run.rd.Count()
	}
	if run.err != nil {
		run.res.Valid = false
		if run.hdr == nil {
			return nil, run.err
		}
		return run.res, run.err
	}
	return run.res, nil
}

// stateFn is one step of a verification; it returns the next step or nil.
type stateFn func(*run) stateFn

type run struct {
	v      *Verifier
	ctx    context.Context
	br     *bufio.Reader
	size   int64
	fields log.Fields
	err    error

	hdr    *Header
	eng    modarith.Engine
	rd     *Reader
	hasher Hasher
	res    *Result

	rounds  int
	segment int
	t       uint64

	a, b, m              *modarith.Residue
	next, savedA, savedB *modarith.Residue

	finalB    *big.Int
	recovered *modarith.Residue
	cofactor  *big.Int

	prof prof.Recorder
}

func (r *run) entry() *log.Entry { return r.v.log.WithFields(r.fields) }

func (r *run) fail(err error) stateFn {
	r.err = err
	return nil
}

// canceled records a context error and reports whether the run must stop.
func (r *run) canceled(op string) bool {
	if err := r.ctx.Err(); err != nil {
		r.err = newError(KindCanceled, op, err)
		return true
	}
	return false
}

func stateHeader(r *run) stateFn {
	defer r.prof.Track(time.Now(), "header")
	hdr, err := ReadHeader(r.br)
	if err != nil {
		return r.fail(err)
	}
	r.hdr = hdr
	r.res.Header = hdr
	r.res.TopK = hdr.TopK()
	r.res.ExcessSquarings = hdr.ExcessSquarings()
	r.fields["number"] = hdr.Number.Raw
	return stateSetup
}

func stateSetup(r *run) stateFn {
	defer r.prof.Track(time.Now(), "setup")
	hdr := r.hdr
	mod := hdr.Modulus()

	cofactor, err := hdr.Number.Cofactor()
	if err != nil {
		return r.fail(err)
	}
	r.cofactor = cofactor

	r.rounds = hdr.Power
	if r.v.opts.Partial {
		have := int((r.size - hdr.Size) / int64(mod.ByteWidth()))
		if have < hdr.ResidueCount() {
			power := have - (hdr.PowerMultiplier-1)*(hdr.Power+1) - 1
			if power <= 0 {
				return r.fail(errorf(KindTooFewResidues, "partial", "proof holds %d residues", have))
			}
			r.rounds = power
			r.res.PartialPower = power
			r.entry().Infof("Partial proof file contains %d residues, attempting proof power %d", have, power)
		}
	}

	eng, err := r.v.opts.NewEngine(mod)
	if err != nil {
		return r.fail(newError(KindSetup, "engine", err))
	}
	r.eng = eng
	r.hasher = NewHasher(mod)
	r.rd = NewReader(r.br, mod)

	r.entry().Info(hdr.String())
	if x := hdr.ExcessSquarings(); x > 0 {
		r.entry().Warnf("Prover did %d excess squarings", x)
	}

	r.a = eng.New()
	eng.SetUint64(r.a, uint64(hdr.Base))
	eng.ExpUint64(r.a, mod.K)
	mult := uint64(hdr.PowerMultiplier)
	for i := uint64(0); i < hdr.TopK()%mult; i++ {
		eng.Square(r.a)
	}
	r.b = eng.New()
	r.m = eng.New()
	if mult > 1 {
		r.next = eng.New()
		r.savedA = eng.New()
		r.savedB = eng.New()
	}
	return stateSegment
}

func stateSegment(r *run) stateFn {
	defer r.prof.Track(time.Now(), "segments")
	if r.canceled("segment") {
		return nil
	}
	hdr, eng := r.hdr, r.eng
	r.segment++
	last := r.segment == hdr.PowerMultiplier

	braw, err := r.rd.Next()
	if err != nil {
		return r.fail(err)
	}
	eng.SetBig(r.b, braw)
	if last {
		r.finalB = eng.Big(r.b)
		if hdr.ExcessSquarings() == 0 {
			r.res.Type3Res64 = modarith.Res64(braw)
			r.entry().Infof("Type-3 res64: %s", r.res.Type3Res64)
		}
	} else {
		eng.Copy(r.next, r.b)
	}

	prev := r.hasher.Root(eng.Big(r.b))
	r.res.RootHashes = append(r.res.RootHashes, prev)
	r.entry().WithField("segment", r.segment).Debugf("Root hash = %s", prev)

	t := hdr.TopK() / uint64(hdr.PowerMultiplier)
	challenges := make([]uint64, 0, r.rounds)
	for i := 0; i < r.rounds; i++ {
		if r.canceled("round") {
			return nil
		}
		var squareA, squareB bool
		t, squareA, squareB = r.v.opts.Strategy.Halve(t)
		if squareB {
			eng.Square(r.b)
		}
		if squareA {
			eng.Square(r.a)
		}

		mraw, err := r.rd.Next()
		if err != nil {
			return r.fail(err)
		}
		eng.SetBig(r.m, mraw)
		// the prover only hashes power-1 middles; the last one is applied as is
		if i == hdr.Power-1 {
			eng.Mul(r.a, r.m)
			eng.Mul(r.b, r.m)
			continue
		}
		prev = r.hasher.Link(prev, eng.Big(r.m))
		h := prev.Truncate(hdr.HashBits)
		challenges = append(challenges, h)
		r.entry().WithField("segment", r.segment).Debugf("h%d = %016X", i, h)

		eng.ExpUint64(r.a, h)
		eng.Mul(r.a, r.m)
		eng.ExpUint64(r.m, h)
		eng.Mul(r.b, r.m)
	}
	r.t = t
	r.res.Challenges = append(r.res.Challenges, challenges)

	for i := r.rounds; i < hdr.Power; i++ {
		if err := r.rd.Skip(); err != nil {
			if r.v.opts.Partial && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				break
			}
			return r.fail(err)
		}
	}

	if hdr.PowerMultiplier > 1 {
		if r.segment > 1 {
			eng.Mul(r.a, r.savedA)
			eng.Mul(r.b, r.savedB)
		}
		if !last {
			r.savedA, r.a = r.a, r.savedA
			r.savedB, r.b = r.b, r.savedB
			r.a, r.next = r.next, r.a
		}
	}

	if err := eng.Err(); err != nil && r.v.opts.Strict {
		return r.fail(newError(KindArithmeticEngine, "segment", err))
	}
	if last {
		return stateRecover
	}
	return stateSegment
}

func stateFinalCheck(r *run) stateFn {
	defer r.prof.Track(time.Now(), "delegation")
	eng := r.eng
	if err := eng.Err(); err != nil {
		if r.v.opts.Strict {
			return r.fail(newError(KindArithmeticEngine, "final", err))
		}
		r.res.EngineErr = err
		r.entry().WithError(err).Warn("Arithmetic engine reported an inconsistency")
	}

	r.res.ServerCost = modarith.Squarings(eng.Ops())
	r.res.CertificationCost = r.t
	r.entry().Infof("Total server processing cost would be %d squarings", r.res.ServerCost)
	r.entry().Infof("Certification cost is %d squarings", r.res.CertificationCost)

	d := &Delegation{Squarings: r.t}
	if r.v.opts.Rerandomize {
		x, err := rerandomizer(r.v.opts.Seed)
		if err != nil {
			return r.fail(newError(KindSetup, "rerandomize", err))
		}
		eng.ExpUint64(r.a, x)
		eng.ExpUint64(r.b, x)
		d.Rerandomized = true
	}
	d.X = eng.Big(r.a)
	d.Expected = r.hasher.Root(eng.Big(r.b))
	r.res.HashB = d.Expected
	r.res.Delegation = d
	r.entry().Debugf("Hash B = %s", d.Expected)

	hashA, err := d.Run(r.ctx, eng, r.v.opts.Progress)
	if err != nil {
		return r.fail(err)
	}
	r.res.HashA = hashA
	r.entry().Debugf("Hash A = %s", hashA)

	if err := eng.Err(); err != nil && r.v.opts.Strict {
		return r.fail(newError(KindArithmeticEngine, "delegated", err))
	}
	r.res.Valid = d.Check(hashA)
	if r.res.Valid {
		r.entry().Info("Proof is valid")
	} else {
		r.entry().Warn("Proof is invalid: hash A and hash B differ")
	}
	return nil
}
