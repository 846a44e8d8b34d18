package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	csound "github.com/aspect-build/csound-go"
	"github.com/aspect-build/csound-go/internal/backend"
	"github.com/aspect-build/csound-go/internal/script"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Script       string
	Record       string
	Host         bool
	Module       string
	Input        string
	LoopInput    bool
	BufferFrames int
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <file.csd>",
		Short: "Perform a piece in real time",
		Long: `Perform a CSD file in real time on a performance thread.

By default the engine drives the audio device through its own real-time
module. With --host the output buffer is played by gocsound instead, and
--input can feed a sound file (wav, mp3 or ogg) into the input
buffer. A Lua control script can send events and set channels while the
piece plays.

Example:
  gocsound play song.csd
  gocsound play --host --input voice.wav --record take.wav effect.csd
  gocsound play --script automation.lua song.csd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Script, "script", "s", "", "Lua control script")
	cmd.Flags().StringVarP(&opts.Record, "record", "r", "", "also record the output to this WAV file")
	cmd.Flags().BoolVar(&opts.Host, "host", false, "play the output through gocsound instead of a native module")
	cmd.Flags().StringVarP(&opts.Module, "module", "m", "", "native real-time audio module (default from config, else platform default)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "sound file fed to the engine input (with --host)")
	cmd.Flags().BoolVar(&opts.LoopInput, "loop-input", false, "loop the input file")
	cmd.Flags().IntVar(&opts.BufferFrames, "buffer-frames", 0, "host playback buffer size in frames (default from config)")

	return cmd
}

func runPlay(opts *PlayOptions, input string, cmd *cobra.Command) error {
	host := opts.Host || opts.cfg.HostAudio
	if opts.Input != "" && !host {
		return NewExitError(ExitCommandError, "--input needs --host")
	}

	extra := []string{"-odac"}
	if opts.Input != "" {
		extra = append(extra, "-iadc")
	}
	cs, err := opts.newInstance(extra...)
	if err != nil {
		return err
	}
	defer cs.Close()

	if host {
		cs.SetHostAudioIO()
	} else {
		module := opts.Module
		if module == "" {
			module = opts.cfg.RealtimeModule
		}
		if module == "" {
			module = csound.DefaultRealtimeModule()
		}
		cs.SetRTAudioModule(module)
		opts.logger.Debug("using real-time module", "module", module)
	}

	if err := cs.CompileCsd(input); err != nil {
		return WrapExitError(ExitCommandError, "failed to compile "+input, err)
	}
	if err := cs.Start(); err != nil {
		return WrapExitError(ExitFailure, "failed to start performance", err)
	}

	pt, err := csound.NewPerformanceThread(cs, append(opts.cfg.ThreadOptions(), csound.WithThreadLogger(opts.logger))...)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start performance thread", err)
	}
	// Every early return below must end the render loop before cs.Close.
	abort := func(code int, msg string, err error) error {
		pt.Stop()
		pt.Join()
		return WrapExitError(code, msg, err)
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	var player *backend.OtoOutput
	if host {
		frames := opts.BufferFrames
		if frames == 0 {
			frames = opts.cfg.Output.BufferFrames
		}
		player, err = backend.NewOtoOutput(int(cs.Sr()), cs.Nchnls(), cs.ZeroDBFS(), frames)
		if err != nil {
			return abort(ExitCommandError, "failed to open audio device", err)
		}
		closers = append(closers, player)
		if err := pt.AddOutput(player); err != nil {
			return abort(ExitFailure, "failed to add output", err)
		}
	}
	if opts.Input != "" {
		in, err := backend.NewFileInput(opts.Input, opts.LoopInput, cs.ZeroDBFS())
		if err != nil {
			return abort(ExitCommandError, "failed to open input", err)
		}
		closers = append(closers, in)
		if err := pt.AddInput(in); err != nil {
			return abort(ExitFailure, "failed to add input", err)
		}
	}
	if opts.Record != "" {
		if err := pt.Record(opts.Record, opts.cfg.Output.Bits); err != nil {
			return abort(ExitCommandError, "failed to start recording", err)
		}
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scriptDone := make(chan struct{})
	if opts.Script != "" {
		rt := script.New(pt, script.WithLogger(opts.logger), script.WithTimeout(opts.cfg.Thread.Timeout))
		go func() {
			defer close(scriptDone)
			defer rt.Close()
			if err := rt.RunFile(ctx, opts.Script); err != nil && ctx.Err() == nil && !script.IsStopped(err) {
				opts.logger.Error("script failed", "script", opts.Script, "error", err)
			}
		}()
	} else {
		close(scriptDone)
	}

	keys, err := startKeys(pt, cmd.ErrOrStderr())
	if err != nil {
		opts.logger.Warn("keyboard control disabled", "error", err)
	}

	start := time.Now()
	pt.Play()
	select {
	case <-pt.Done():
	case <-ctx.Done():
		pt.Stop()
	}
	code, perr := pt.Join()
	keys.restore()
	cancel()
	<-scriptDone

	res := PlayResult{
		Input:     input,
		Played:    time.Since(start),
		Exit:      code.String(),
		Recording: opts.Record,
	}
	if player != nil {
		res.Underruns = player.Underruns()
	}
	if err := opts.formatter(cmd).Success(res, func(w io.Writer) error { return writePlayResult(w, res) }); err != nil {
		return err
	}
	if perr != nil {
		return WrapExitError(ExitFailure, "performance failed", perr)
	}
	return nil
}
