// feedlogd persists a real-time feed to rotating gzip files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtxerr/feedlog/internal/loader"
	"github.com/xtxerr/feedlog/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(context.Background(), newRootCmd(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run executes cmd with args and reports any failure on the command's stderr,
// including flag parse errors that cobra itself is told not to print.
func run(ctx context.Context, cmd *cobra.Command, args []string) error {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "feedlogd:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "feedlogd",
		Short:         "Download a streaming feed into rotating gzip files",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}

			closeLog, err := setupLogging(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.Component("main")
			log.Info("feedlogd starting", "version", Version, "mode", cfg.Stream.Mode, "output", cfg.Output.Directory)

			if err := runDaemon(ctx, cfg, log); err != nil {
				log.Error("exiting after fatal fault", "error", err)
				return err
			}
			log.Info("exiting")
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

// buildConfig loads the config file, applies environment credentials and
// flag overrides, and validates the result.
func buildConfig(cmd *cobra.Command, f *flags) (*loader.Config, error) {
	cfg, err := loader.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	loader.ApplyEnv(cfg, os.LookupEnv)

	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging initializes the process logger and returns a func that
// releases the log file, if any.
func setupLogging(cfg loader.LoggingConfig) (func(), error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: level, Format: cfg.Format, Output: os.Stdout}
	closeFn := func() {}
	if cfg.File != "" {
		file, err := logging.OpenFile(cfg.File)
		if err != nil {
			return nil, err
		}
		opts.Output = file
		closeFn = func() { file.Close() }
	}

	logging.Init(opts)
	return closeFn, nil
}
