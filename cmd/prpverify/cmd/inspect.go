package cmd

import (
	"bufio"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"prp-proof/proof"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:           "inspect <proof>...",
	Aliases:       []string{"info"},
	Short:         "Show a proof header and how much of the file is written",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := inspect(cmd, path); err != nil {
				return err
			}
		}
		return nil
	},
}

func inspect(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	guessed, err := proof.GuessFileSize(f)
	if err != nil {
		return err
	}
	h, err := proof.ReadHeader(bufio.NewReader(f))
	if err != nil {
		return err
	}
	mod := h.Modulus()
	width := int64(mod.ByteWidth())
	have := (guessed - h.Size) / width

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  number:\t%s (%s)\n", h.Number.Raw, mod)
	if len(h.Number.Factors) > 0 {
		fmt.Fprintf(w, "  known factors:\t%v\n", h.Number.Factors)
	}
	fmt.Fprintf(w, "  version:\t%d\n", h.Version)
	fmt.Fprintf(w, "  base:\t%d\n", h.Base)
	fmt.Fprintf(w, "  power:\t%d\n", h.Power)
	if h.PowerMultiplier > 1 {
		fmt.Fprintf(w, "  power multiplier:\t%d\n", h.PowerMultiplier)
	}
	fmt.Fprintf(w, "  hash bits:\t%d\n", h.HashBits)
	fmt.Fprintf(w, "  topK:\t%d (%d excess squarings)\n", h.TopK(), h.ExcessSquarings())
	fmt.Fprintf(w, "  residue width:\t%d bytes\n", width)
	fmt.Fprintf(w, "  residues:\t%d of %d\n", have, h.ResidueCount())
	fmt.Fprintf(w, "  size:\t%s written, %s on disk, %s expected\n",
		humanize.Bytes(uint64(guessed)), humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(h.ExpectedSize())))
	if int(have) < h.ResidueCount() {
		partial := int(have) - (h.PowerMultiplier-1)*(h.Power+1) - 1
		if partial > 0 {
			fmt.Fprintf(w, "  partial power:\t%d\n", partial)
		} else {
			fmt.Fprintf(w, "  partial power:\ttoo few residues\n")
		}
	}
	full := h.TopK() / uint64(h.PowerMultiplier)
	fmt.Fprintf(w, "  delegated squarings:\t%s (square-b), %s (square-a)\n",
		humanize.Comma(int64(proof.SquareB.FinalDistance(full, h.Power))),
		humanize.Comma(int64(proof.SquareA.FinalDistance(full, h.Power))))
	fmt.Fprintf(w, "  hashed width:\t%d bytes\n", mod.WordWidth())
	return w.Flush()
}
