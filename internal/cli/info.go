package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	csound "github.com/aspect-build/csound-go"
)

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		midi   bool
		inputs bool
		module string
	)
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio or MIDI devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := rootOpts.newInstance()
			if err != nil {
				return err
			}
			defer cs.Close()

			f := rootOpts.formatter(cmd)
			if midi {
				devs := cs.MidiDevices(!inputs)
				return f.Success(devs, func(w io.Writer) error { return writeMidiDevices(w, devs) })
			}
			if module == "" {
				module = rootOpts.cfg.RealtimeModule
			}
			if module != "" {
				cs.SetRTAudioModule(module)
			}
			devs := cs.AudioDevices(!inputs)
			return f.Success(devs, func(w io.Writer) error { return writeAudioDevices(w, devs) })
		},
	}
	cmd.Flags().BoolVar(&midi, "midi", false, "list MIDI devices instead of audio devices")
	cmd.Flags().BoolVar(&inputs, "inputs", false, "list input devices instead of outputs")
	cmd.Flags().StringVarP(&module, "module", "m", "", "real-time audio module to query")
	return cmd
}

// NewOpcodesCommand creates the opcodes command.
func NewOpcodesCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "opcodes",
		Short: "List the opcodes known to the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			defs, err := csound.Opcodes()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list opcodes", err)
			}
			if prefix != "" {
				kept := defs[:0]
				for _, d := range defs {
					if strings.HasPrefix(d.Name, prefix) {
						kept = append(kept, d)
					}
				}
				defs = kept
			}
			return rootOpts.formatter(cmd).Success(defs, func(w io.Writer) error { return writeOpcodes(w, defs) })
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list opcodes starting with this prefix")
	return cmd
}

// NewSystemSrCommand creates the system-sr command.
func NewSystemSrCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "system-sr [module]",
		Short: "Print the sample rate of the audio system",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			module := rootOpts.cfg.RealtimeModule
			if len(args) == 1 {
				module = args[0]
			}
			sr, module, err := csound.SystemSampleRate(module)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to query "+module, err)
			}
			out := struct {
				Module     string  `json:"module"`
				SampleRate float64 `json:"sample_rate"`
			}{module, sr}
			return rootOpts.formatter(cmd).Success(out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %g Hz\n", module, sr)
				return err
			})
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the Csound library version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			out := struct {
				Library string `json:"library"`
				Version string `json:"version"`
			}{csound.LibraryPath(), csound.GetVersionInfo().String()}
			return rootOpts.formatter(cmd).Success(out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Csound %s (%s)\n", out.Version, out.Library)
				return err
			})
		},
	}
}
