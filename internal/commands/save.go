package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finwrap-dev/finwrap/internal/account"
	"github.com/finwrap-dev/finwrap/internal/bagels"
	"github.com/finwrap-dev/finwrap/internal/logger"
)

func newSaveCommand(opts *options) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "save <config>",
		Short: "Import the configured accounts into the bagels database",
		Long: `Reads every account of the collection configuration, converts amounts
into the configured currency and writes the transactions that bagels does
not have yet. Running it twice on the same files writes nothing new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd, opts, args[0], dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "bagels database path (default: ask bagels, env FINWRAP_DB_PATH)")

	return cmd
}

func runSave(cmd *cobra.Command, opts *options, cfgPath, dbPath string) error {
	log := logger.FromContext(cmd.Context()).With().Str("run_id", uuid.NewString()).Logger()
	ctx := logger.WithContext(cmd.Context(), log)
	log.Info().Str("config", cfgPath).Msg("starting import")

	lf, release, err := opts.plan(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer release()

	if dbPath == "" {
		dbPath = opts.settings.DBPath
	}
	if dbPath == "" {
		if dbPath, err = bagels.LocateDatabase(ctx, opts.settings.BagelsBin); err != nil {
			return err
		}
	}
	store, err := bagels.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	txns, err := account.Transactions(ctx, lf)
	if err != nil {
		return err
	}
	res, err := bagels.NewExporter(store).Export(ctx, txns)
	if err != nil {
		return fmt.Errorf("exporting to %s: %w", dbPath, err)
	}

	out := cmd.OutOrStdout()
	if len(res.AccountsCreated) > 0 {
		fmt.Fprintf(out, "Created accounts: %s\n", strings.Join(res.AccountsCreated, ", "))
	}
	fmt.Fprintf(out, "Wrote %d new records to %s (%d already present", res.Written, dbPath, res.Duplicates)
	if res.Unresolved > 0 {
		fmt.Fprintf(out, ", %d dropped", res.Unresolved)
	}
	fmt.Fprintln(out, ")")
	log.Info().Int("written", res.Written).Int("duplicates", res.Duplicates).Msg("import finished")
	return nil
}
