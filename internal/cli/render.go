package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	csound "github.com/aspect-build/csound-go"
	"github.com/aspect-build/csound-go/internal/backend"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Output string
	OutDir string
	Bits   int
	Jobs   int
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <file.csd>...",
		Short: "Render pieces to WAV files",
		Long: `Render one or more CSD files offline as fast as the engine allows.

Each piece runs on its own performance thread with host audio output, and
its output buffer is written to a WAV file next to the input (or in
--out-dir). Up to --jobs pieces render at once.

Example:
  gocsound render song.csd -o song.wav --bits 24
  gocsound render -j 4 --out-dir build pieces/*.csd`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (single input only)")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "directory for output files")
	cmd.Flags().IntVar(&opts.Bits, "bits", 0, "bits per sample: 16, 24 or 32 (default from config)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "pieces rendered in parallel (default from config, else one per CPU)")

	return cmd
}

func runRender(opts *RenderOptions, inputs []string, cmd *cobra.Command) error {
	if opts.Output != "" && len(inputs) > 1 {
		return NewExitError(ExitCommandError, "--output needs exactly one input")
	}
	bits := opts.cfg.Output.Bits
	if opts.Bits != 0 {
		bits = opts.Bits
	}
	jobs := opts.cfg.Render.Jobs
	if opts.Jobs > 0 {
		jobs = opts.Jobs
	}
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}
	outDir := opts.cfg.Output.Dir
	if opts.OutDir != "" {
		outDir = opts.OutDir
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}
	if err := opts.load(); err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := make([]RenderResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range inputs {
		out := opts.Output
		if out == "" {
			out = outputPath(in, outDir)
		}
		g.Go(func() error {
			results[i] = renderOne(gctx, opts.RootOptions, in, out, bits)
			return nil
		})
	}
	_ = g.Wait()

	f := opts.formatter(cmd)
	if err := f.Success(results, func(w io.Writer) error { return writeRenderResults(w, results) }); err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != "" {
			return NewExitError(ExitFailure, "some pieces failed to render")
		}
	}
	if ctx.Err() != nil {
		return WrapExitError(ExitFailure, "rendering interrupted", ctx.Err())
	}
	return nil
}

// outputPath maps song.csd to song.wav, in dir when given.
func outputPath(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".wav"
	if dir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(dir, base)
}

func renderOne(ctx context.Context, opts *RootOptions, input, output string, bits int) RenderResult {
	res := RenderResult{Input: input, Output: output}
	start := time.Now()
	logger := opts.logger.With("input", input)

	fail := func(err error) RenderResult {
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		logger.Error("render failed", "error", err)
		return res
	}

	cs, err := opts.newInstance("-odac")
	if err != nil {
		return fail(err)
	}
	defer cs.Close()
	cs.SetHostAudioIO()

	if err := cs.CompileCsd(input); err != nil {
		return fail(err)
	}
	if err := cs.Start(); err != nil {
		return fail(err)
	}
	res.SampleRate = cs.Sr()
	res.Channels = cs.Nchnls()

	out, err := backend.NewWAVOutput(output, int(res.SampleRate), res.Channels, bits, cs.ZeroDBFS())
	if err != nil {
		return fail(err)
	}

	pt, err := csound.NewPerformanceThread(cs, append(opts.cfg.ThreadOptions(), csound.WithThreadLogger(logger))...)
	if err != nil {
		out.Close()
		return fail(err)
	}
	meter := csound.NewLevelMeter(cs.ZeroDBFS())
	for _, o := range []csound.AudioOutput{out, meter} {
		if err := pt.AddOutput(o); err != nil {
			pt.Stop()
			pt.Join()
			out.Close()
			return fail(err)
		}
	}
	logger.Debug("rendering", "output", output, "sr", res.SampleRate, "nchnls", res.Channels)
	pt.Play()

	select {
	case <-pt.Done():
	case <-ctx.Done():
		pt.Stop()
	}
	code, perr := pt.Join()
	res.Exit = code.String()
	res.Frames = int64(out.Frames())
	res.PeakDBFS = meter.Peak()
	res.RMSDBFS = meter.RMS()
	if err := out.Close(); err != nil && perr == nil {
		perr = err
	}
	if perr != nil {
		return fail(perr)
	}
	if st, err := os.Stat(output); err == nil {
		res.Bytes = st.Size()
	}
	res.Elapsed = time.Since(start)
	logger.Info("rendered", "output", output, "frames", res.Frames, "peak_dbfs", res.PeakDBFS, slog.Duration("elapsed", res.Elapsed))
	return res
}
