package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

const defaultEvalOrc = `
sr = 44100
ksmps = 32
nchnls = 1
0dbfs = 1
`

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Orc string
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <code>",
		Short: "Evaluate orchestra code and print its return value",
		Long: `Compile and run orchestra code in the global space of a fresh engine
and print the value given to its return statement.

Example:
  gocsound eval 'return 2+2'
  gocsound eval --orc tables.orc 'return ftlen(1)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Orc, "orc", "", "orchestra compiled before evaluating")

	return cmd
}

func runEval(opts *EvalOptions, code string, cmd *cobra.Command) error {
	orc := defaultEvalOrc
	if opts.Orc != "" {
		data, err := os.ReadFile(opts.Orc)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read orchestra", err)
		}
		orc = string(data)
	}

	cs, err := opts.newInstance("-n", "-d")
	if err != nil {
		return err
	}
	defer cs.Close()

	if err := cs.CompileOrc(orc); err != nil {
		return WrapExitError(ExitCommandError, "failed to compile orchestra", err)
	}
	if err := cs.Start(); err != nil {
		return WrapExitError(ExitFailure, "failed to start engine", err)
	}
	v, err := cs.EvalCode(code)
	if err != nil {
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}

	out := struct {
		Code  string  `json:"code"`
		Value float64 `json:"value"`
	}{code, v}
	return opts.formatter(cmd).Success(out, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, strconv.FormatFloat(v, 'g', -1, 64))
		return err
	})
}
