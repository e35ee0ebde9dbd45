package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/promptchain/pkg/engine"
	"github.com/germanamz/promptchain/pkg/projectdir"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath   string
	projectDir   string
	envFile      string
	logLevel     string
	conversation string

	log *slog.Logger
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "promptchain",
		Short: "Run prompt chains against LLM backends",
		Long: `promptchain renders a prompt template, surrounds it with optional
header and sandwich messages and the stored conversation, sends it to the
configured backend, and records the exchange.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(opts.envFile); err != nil {
				return err
			}

			level, err := parseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = newLogger(cmd.ErrOrStderr(), level)

			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (default: .promptchain/config.yaml or promptchain.yaml)")
	flags.StringVar(&opts.projectDir, "dir", projectdir.DefaultName, "path to the project directory")
	flags.StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.conversation, "conversation", "", "conversation id (overrides history.conversation)")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newPromptsCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// openEngine loads the configuration and builds an engine from it.
func (o *globalOptions) openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := engine.LoadConfig(projectdir.ResolveConfigPath(o.configPath, projectdir.New(o.projectDir)))
	if err != nil {
		return nil, err
	}

	log := o.log
	if log == nil {
		log = newLogger(os.Stderr, slog.LevelWarn)
	}

	opts := []engine.Option{engine.WithLogger(log), engine.WithBaseContext(ctx)}
	if o.conversation != "" {
		opts = append(opts, engine.WithConversation(o.conversation))
	}

	return engine.New(cfg, opts...)
}
