package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prp-proof/internal/config"
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("halving", "square-b", "odd-distance strategy the prover used (square-b|square-a)")
	verifyCmd.Flags().Bool("partial", false, "verify a proof file that is still being written")
	verifyCmd.Flags().Bool("rerandomize", false, "raise A and B to a secret power before the delegated step")
	verifyCmd.Flags().Bool("strict", false, "fail on arithmetic self-check errors")
	verifyCmd.Flags().Uint64("check-interval", 0, "self-check every N multiplications (0 keeps the configured value)")
	verifyCmd.Flags().Bool("no-progress", false, "do not draw a progress bar")
	verifyCmd.Flags().String("ledger", "", "record results in this ledger directory")
	verifyCmd.Flags().Bool("skip-known", false, "skip files the ledger already verified")
	viper.BindPFlag("verify.halving", verifyCmd.Flags().Lookup("halving"))
	viper.BindPFlag("verify.partial", verifyCmd.Flags().Lookup("partial"))
	viper.BindPFlag("verify.rerandomize", verifyCmd.Flags().Lookup("rerandomize"))
	viper.BindPFlag("verify.strict", verifyCmd.Flags().Lookup("strict"))
	viper.BindPFlag("ledger.path", verifyCmd.Flags().Lookup("ledger"))
	viper.BindPFlag("ledger.skip-known", verifyCmd.Flags().Lookup("skip-known"))
}

// loadConfig applies the flags that cannot be bound directly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("check-interval"); f != nil && f.Changed {
		cfg.Verify.CheckInterval, _ = cmd.Flags().GetUint64("check-interval")
	}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); noProgress {
		cfg.Verify.Progress = false
	}
	return cfg, nil
}

var verifyCmd = &cobra.Command{
	Use:           "verify <proof>...",
	Aliases:       []string{"v"},
	Short:         "Verify PRP proof files",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := newSession(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		failed := 0
		for _, path := range args {
			res, known, err := s.verify(ctx, path)
			if known {
				continue
			}
			if err != nil {
				failed++
				log.WithField("file", path).Error(err.Error())
				if ctx.Err() != nil {
					return err
				}
				continue
			}
			printResult(cmd.OutOrStdout(), path, res)
			if !res.Valid {
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("%d of %d proofs not verified", failed, len(args))
		}
		return nil
	},
}
