package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFile  string
	logLevel string
	store    string
}

// AddFlags binds the options to flagSet.
func (o *globalOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.envFile, "env-file", "", "dotenv file to load instead of ./.env")
	flagSet.StringVar(&o.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flagSet.StringVar(&o.store, "store", "", "override STORE_DRIVER (postgres, redis, memory)")
}

// loadConfig reads the environment and applies flag overrides on top.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	}
	if o.store != "" {
		cfg.Store.Driver = strings.ToLower(o.store)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRootCommand assembles the ticketd command tree. Running it without a
// subcommand starts the HTTP server.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "ticketd",
		Short:         "Support ticket lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.AddFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newCancelInProgressCommand(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
