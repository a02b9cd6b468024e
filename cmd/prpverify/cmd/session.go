package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"prp-proof/internal/config"
	"prp-proof/internal/ledger"
	"prp-proof/proof"
)

// Delegated steps shorter than this finish before a bar is worth drawing.
const progressThreshold = 1 << 16

var (
	accepted = color.New(color.FgGreen, color.Bold).SprintFunc()
	obscured = color.New(color.FgYellow, color.Bold).SprintFunc()
	rejected = color.New(color.FgRed, color.Bold).SprintFunc()
	faint    = color.New(color.Faint).SprintFunc()
)

// session verifies files under one configuration and optional ledger.
type session struct {
	cfg    *config.Config
	opts   proof.Options
	ledger *ledger.Ledger
	out    io.Writer
}

func newSession(cfg *config.Config, out io.Writer) (*session, error) {
	opts, err := cfg.ProofOptions(log.Log)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, opts: opts, out: out}
	if cfg.Ledger.Path != "" {
		if s.ledger, err = ledger.Open(cfg.Ledger.Path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Close()
}

// verify checks one file. known is set when the ledger already held a
// successful verification and skip-known is on.
func (s *session) verify(ctx context.Context, path string) (res *proof.Result, known bool, err error) {
	var digest string
	if s.ledger != nil {
		if digest, err = ledger.DigestFile(path); err != nil {
			return nil, false, err
		}
		if s.cfg.Ledger.SkipKnown {
			rec, ok, err := s.ledger.Get(digest)
			if err != nil {
				return nil, false, err
			}
			if ok && rec.Error == "" {
				fmt.Fprintf(s.out, "%s %s\n", path, faint(fmt.Sprintf("already verified %s: %s", rec.VerifiedAt.Format("2006-01-02"), recordVerdict(rec))))
				return nil, true, nil
			}
		}
	}

	opts := s.opts
	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if s.cfg.Verify.Progress {
		opts.Progress = func(done, total uint64) {
			if bar == nil {
				if total < progressThreshold {
					return
				}
				p = mpb.New(mpb.WithWidth(80), mpb.WithOutput(os.Stderr))
				bar = p.New(int64(total),
					mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
					mpb.PrependDecorators(
						decor.Name("squaring ", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
						decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done"),
					),
					mpb.AppendDecorators(decor.CountersNoUnit("%d/%d")),
				)
			}
			bar.SetCurrent(int64(done))
		}
	}

	v, err := proof.New(opts)
	if err != nil {
		return nil, false, err
	}
	res, err = v.VerifyFile(ctx, path)
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	if res != nil {
		for _, e := range res.Timings {
			log.WithFields(log.Fields{"file": path, "stage": e.Label, "took": e.Dur}).Debug("timing")
		}
	}

	if s.ledger != nil && !errors.Is(err, proof.ErrCanceled) {
		if perr := s.ledger.Put(ledger.NewRecord(digest, path, res, err)); perr != nil {
			log.WithError(perr).Warn("could not record verification")
		}
	}
	return res, false, err
}

func recordVerdict(rec ledger.Record) string {
	if !rec.Valid {
		return "proof rejected"
	}
	return fmt.Sprintf("proof accepted, %s PRP", rec.PRP)
}

// printResult writes the verdict line and the diagnostics worth keeping.
func printResult(w io.Writer, path string, res *proof.Result) {
	verdict := rejected(res.Verdict())
	if res.Valid {
		verdict = accepted(res.Verdict())
		if res.PRP == proof.ObscuredPositive {
			verdict = obscured(res.Verdict())
		}
	}
	fmt.Fprintf(w, "%s %s\n", path, verdict)
	fmt.Fprintf(w, "  number:             %s\n", res.Header.Number.Raw)
	if res.PartialPower > 0 {
		fmt.Fprintf(w, "  partial power:      %d of %d\n", res.PartialPower, res.Header.Power)
	}
	if res.Type3Res64 != "" {
		fmt.Fprintf(w, "  type-3 res64:       %s\n", res.Type3Res64)
	}
	if res.Type5Res64 != "" {
		fmt.Fprintf(w, "  type-5 res64:       %s\n", res.Type5Res64)
	}
	if !res.Hardened {
		fmt.Fprintf(w, "  hardening:          %s\n", obscured("not available for this number"))
	} else {
		fmt.Fprintf(w, "  hardening:          %d bits, %s squarings\n", res.HardeningBits, humanize.Comma(int64(res.HardeningCost)))
	}
	fmt.Fprintf(w, "  server cost:        %s squarings\n", humanize.Comma(int64(res.ServerCost)))
	fmt.Fprintf(w, "  certification cost: %s squarings\n", humanize.Comma(int64(res.CertificationCost)))
	if res.EngineErr != nil {
		fmt.Fprintf(w, "  engine:             %s\n", rejected(res.EngineErr))
	}
}
