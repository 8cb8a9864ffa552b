package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/finwrap-dev/finwrap/internal/account"
	"github.com/finwrap-dev/finwrap/internal/buildinfo"
	"github.com/finwrap-dev/finwrap/internal/config"
	"github.com/finwrap-dev/finwrap/internal/currency"
	"github.com/finwrap-dev/finwrap/internal/frame"
	"github.com/finwrap-dev/finwrap/internal/logger"
)

// options holds the global flags and the settings resolved from them.
type options struct {
	logLevel string
	rateURL  string
	redisURL string

	settings config.Settings
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:     "finwrap",
		Short:   "Import bank and card exports into bagels",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (env FINWRAP_LOG_LEVEL)")
	flags.StringVar(&opts.rateURL, "rate-url", "", "exchange-rate URL template with {date} and {currency} (env FINWRAP_RATE_URL)")
	flags.StringVar(&opts.redisURL, "redis-url", "", "share the exchange-rate cache through Redis (env FINWRAP_REDIS_URL)")

	rootCmd.AddCommand(newSaveCommand(opts))
	rootCmd.AddCommand(newShowCommand(opts))
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}

// setup loads settings, applies flag overrides and puts a logger in the
// command context.
func (o *options) setup(cmd *cobra.Command) error {
	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.LogLevel = o.logLevel
	}
	if flags.Changed("rate-url") {
		s.RateURL = o.rateURL
	}
	if flags.Changed("redis-url") {
		s.RedisURL = o.redisURL
	}

	level, err := logger.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	log := logger.NewConsole(cmd.ErrOrStderr(), level)
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	o.settings = s
	return nil
}

// resolver builds the exchange-rate resolver. The returned func releases
// the Redis connection when one was opened.
func (o *options) resolver(ctx context.Context) (*currency.Resolver, func(), error) {
	ropts := []currency.Option{
		currency.WithHTTPClient(&http.Client{Timeout: o.settings.HTTPTimeout}),
	}
	if o.settings.RateURL != "" {
		ropts = append(ropts, currency.WithURLTemplate(o.settings.RateURL))
	}
	release := func() {}
	if o.settings.RedisURL != "" {
		cache, err := currency.DialRedis(ctx, o.settings.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log := logger.FromContext(ctx)
		log.Debug().Msg("using redis rate cache")
		ropts = append(ropts, currency.WithCache(cache))
		release = func() { _ = cache.Close() }
	}
	return currency.NewResolver(ropts...), release, nil
}

// plan loads the collection or single account at path and returns its
// canonical plan. Column checks happen here, before anything is fetched.
func (o *options) plan(ctx context.Context, path string) (*frame.LazyFrame, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	rates, release, err := o.resolver(ctx)
	if err != nil {
		return nil, nil, err
	}
	coll, err := account.NewCollection(*cfg, rates)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("loading %s: %w", path, err)
	}
	lf, err := coll.GetData(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	return lf, release, nil
}
