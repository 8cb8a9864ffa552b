package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/finwrap-dev/finwrap/internal/config"
	"github.com/finwrap-dev/finwrap/internal/currency"
)

type initFlags struct {
	account     config.Account
	currencyCol string
	convertTo   string
	defaultRate float64
	strategy    string
	single      bool
	force       bool
}

func newInitCommand() *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init <config>",
		Short: "Write a starter configuration for one account",
		Args:  cobra.ExactArgs(1),
		// Settings and logging are not needed to write a file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("currency-col") || cmd.Flags().Changed("convert-to") {
				f.account.Currency = &config.Currency{
					CurrencyCol: f.currencyCol,
					ConvertTo:   f.convertTo,
					Strategy:    f.strategy,
				}
				if cmd.Flags().Changed("default-rate") {
					rate := f.defaultRate
					f.account.Currency.DefaultRate = &rate
				}
			}
			if err := runInit(args[0], f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration for %q to %s\n", f.account.Name, args[0])
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.account.Name, "name", "", "account name (required)")
	flags.StringArrayVar((*[]string)(&f.account.FilePath), "file", nil, "source file, repeat for several files of the same type (required)")
	flags.StringVar(&f.account.DateCol, "date-col", "", "date column (required)")
	flags.StringVar(&f.account.TransactionCol, "transaction-col", "", "transaction label column (required)")
	flags.StringVar(&f.account.AmountCol, "amount-col", "", "amount column (required)")
	flags.StringVar(&f.account.DateColFormat, "date-format", "", "strftime format of the date column, e.g. %d/%m/%Y")
	flags.StringVar(&f.account.FeesCol, "fees-col", "", "fees column subtracted from the amount")
	flags.StringVar(&f.account.TransactionColCleaningRegex, "cleaning-regex", "", "pattern removed from transaction labels")
	flags.StringVar(&f.currencyCol, "currency-col", "", "column holding each row's currency code")
	flags.StringVar(&f.convertTo, "convert-to", "", "currency to convert amounts into")
	flags.Float64Var(&f.defaultRate, "default-rate", 0, "rate used when the exchange-rate service has none")
	flags.StringVar(&f.strategy, "strategy", "", "rate date: latest (default) or dynamic")
	flags.BoolVar(&f.single, "single", false, "write a single account instead of a collection")
	flags.BoolVar(&f.force, "force", false, "overwrite an existing configuration")
	for _, name := range []string{"name", "file", "date-col", "transaction-col", "amount-col"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runInit(path string, f initFlags) error {
	if err := f.account.Validate(); err != nil {
		return err
	}
	if f.account.Currency != nil {
		if _, err := currency.ParseStrategy(f.account.Currency.Strategy); err != nil {
			return err
		}
	}
	if !f.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if f.single {
		return config.SaveAccount(path, &f.account)
	}
	return config.SaveCollection(path, &config.Collection{Accounts: []config.Account{f.account}})
}
