// Package main is the entry point for the dapviz client.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/dapviz/internal/config"
	"github.com/dshills/dapviz/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	url        string
	logLevel   string
	logFormat  string
	stderr     io.Writer
}

// load reads the config file and environment, then applies flag overrides.
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.url != "" {
		cfg.Endpoint.URL = o.url
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *globalOptions) logger(cfg config.Config) (*slog.Logger, error) {
	lc := cfg.LoggerConfig()
	lc.Output = o.stderr
	return logging.New(lc)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{stderr: stderr}

	root := &cobra.Command{
		Use:           "dapviz",
		Short:         "Follow a program running under a debug adapter",
		Long:          "dapviz connects to a dapviz bridge, keeps a live model of the debugged program's threads, stacks and heap, and sends stepping commands back.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML or YAML configuration file")
	flags.StringVar(&opts.url, "url", "", "Bridge endpoint (overrides endpoint.url)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")

	root.AddCommand(
		newWatchCmd(opts),
		newStepCmd(opts, "step", "Step over the current line"),
		newStepCmd(opts, "step-in", "Step into the call on the current line"),
		newStepCmd(opts, "step-out", "Run until the current function returns"),
		newEncodeCmd(),
		newDecodeCmd(),
	)
	return root
}
