// Package cli implements the gocsound command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	csound "github.com/aspect-build/csound-go"
	"github.com/aspect-build/csound-go/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	Library string

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

// Execute runs the command line and returns the process exit code. Errors
// are reported on stderr, or as a JSON response on stdout with --format json.
func Execute() int {
	cmd, opts := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr()}
	if f.JSON() {
		f.Writer = cmd.OutOrStdout()
	}
	_ = f.Error(err)
	return GetExitCode(err)
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gocsound",
		Short: "Render and perform Csound pieces",
		Long: `gocsound drives the Csound engine through its shared library.

It renders pieces to files, performs them in real time with optional Lua
control scripts, and inspects the installed library.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load(opts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Library != "" {
				cfg.Library.Path = opts.Library
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Library, "library", "", "path to the Csound shared library")

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewOpcodesCommand(opts))
	cmd.AddCommand(NewSystemSrCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd, opts
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// load loads the native library as configured.
func (o *RootOptions) load() error {
	if err := csound.Load(o.cfg.LibraryConfig()); err != nil && err != csound.ErrAlreadyLoaded {
		return WrapExitError(ExitCommandError, "failed to load Csound library", err)
	}
	return nil
}

// newInstance creates an engine with the configured options applied and its
// messages routed to the logger.
func (o *RootOptions) newInstance(extra ...string) (*csound.Csound, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	cs, err := csound.New(csound.WithLogger(o.logger), csound.WithMessageBuffer(false))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	if err := cs.SetOptions(append(slices.Clone(o.cfg.Options), extra...)...); err != nil {
		cs.Close()
		return nil, WrapExitError(ExitCommandError, "invalid engine options", err)
	}
	return cs, nil
}
