package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/finwrap-dev/finwrap/internal/account"
)

func newShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <config>",
		Short: "Print the canonical transactions and their total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lf, release, err := opts.plan(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()

			txns, err := account.Transactions(ctx, lf)
			if err != nil {
				return err
			}

			p := message.NewPrinter(language.English)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tDATE\tTRANSACTION\tAMOUNT")
			var total float64
			for _, tx := range txns {
				total += tx.Amount
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					tx.AccountName, tx.Date.Format(time.DateOnly), tx.Label, p.Sprintf("%.2f", tx.Amount))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			p.Fprintf(cmd.OutOrStdout(), "\n%d transactions, total %.2f\n", len(txns), total)
			return nil
		},
	}
}
