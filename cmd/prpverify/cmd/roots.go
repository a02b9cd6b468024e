package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prp-proof/roots"
)

func init() {
	rootCmd.AddCommand(rootsCmd)
	rootsCmd.Flags().Int("capacity", roots.DefaultCapacity, "maximum number of divisors to enumerate")
}

var rootsCmd = &cobra.Command{
	Use:           "roots <n>",
	Short:         "Show the root-of-unity hardening exponent for 2^n-1",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || n < 2 {
			return fmt.Errorf("bad exponent %q", args[0])
		}
		capacity, _ := cmd.Flags().GetInt("capacity")
		h, err := roots.NewHardener(nil, viper.GetInt("roots.cache-size"), capacity)
		if err != nil {
			return err
		}

		divs, err := roots.FindDivisorsCap(uint32(n-1), capacity)
		if err != nil {
			return err
		}
		factors, err := h.Table().Roots(uint32(n-1), capacity)
		if err != nil {
			return err
		}
		exp, err := h.Exponent(uint32(n))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "divisors of %d: %v\n", n-1, divs)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRIME\tORDER\tPOWER")
		for _, f := range factors {
			fmt.Fprintf(w, "%d\t%d\t%d\n", f.Prime, f.Order, f.Power)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "hardening exponent: %d bits\n", exp.BitLen())
		if viper.GetBool("verbose") {
			fmt.Fprintf(out, "%s\n", exp)
		}
		return nil
	},
}
