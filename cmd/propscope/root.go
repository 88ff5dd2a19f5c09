package main

import (
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/propscope/internal/core/config"
	"github.com/mohammed-shakir/propscope/internal/logger"
)

// env holds what every subcommand gets after the root pre-run.
type env struct {
	cfg config.Config
	log *slog.Logger
	out io.Writer
}

func RootCommand(out, stderr io.Writer) *cobra.Command {
	var (
		envFile  string
		logLevel string
	)
	e := &env{out: out}

	cmd := &cobra.Command{
		Use:           "propscope",
		Short:         "Tile-based spatial reports for property locations",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(out)
	cmd.SetErr(stderr)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// a missing .env is fine; the process environment still applies
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return err
			}
		} else {
			_ = godotenv.Load()
		}

		e.cfg = config.FromEnv()
		if logLevel != "" {
			e.cfg.LogLevel = logLevel
		}
		zl := logger.Build(logger.Config{
			Level:     e.cfg.LogLevel,
			Console:   e.cfg.LogConsole,
			SampleN:   e.cfg.LogSampleN,
			Service:   "propscope",
			Component: cmd.Name(),
		}, stderr)
		e.log = logger.NewSlog(&zl)
		return nil
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file instead of ./.env")
	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newCmdServe(e),
		newCmdClassify(e),
		newCmdRefreshManifest(e),
		newCmdVersion(out),
	)
	return cmd
}
