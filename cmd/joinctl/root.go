package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joinhub/console/internal/config"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultBackend = "http://localhost:8000"

// options are the persistent flags shared by every command.
type options struct {
	backend  string
	output   string
	logLevel string
	timeout  time.Duration

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "joinctl",
		Short:         "Join backend command line",
		Long:          "Create join projects, follow their progress, moderate join requests and convert documents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newPrinter(cmd.OutOrStdout(), opts.output); err != nil {
				return err
			}
			logger, err := logging.New(opts.logLevel, logging.FormatConsole)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	root.PersistentFlags().StringVarP(&opts.backend, "backend", "b", envOr("JOIN_API_URL", defaultBackend), "Join backend base URL")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatTable, "Output format: table, json or yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Timeout for a single backend request")

	root.AddCommand(
		newCreateCmd(opts),
		newProjectsCmd(opts),
		newReviewCmd(opts),
		newConvertCmd(opts),
	)
	return root
}

func (o *options) client() (*joinapi.Client, error) {
	return joinapi.New(o.backend,
		joinapi.WithTimeout(o.timeout),
		joinapi.WithLogger(o.log().Named("joinapi")))
}

func (o *options) printer(cmd *cobra.Command) *printer {
	p, _ := newPrinter(cmd.OutOrStdout(), o.output)
	return p
}

func (o *options) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
