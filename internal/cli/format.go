package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	csound "github.com/aspect-build/csound-go"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func shortDuration(d time.Duration) string {
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

// RenderResult describes one rendered file.
type RenderResult struct {
	Input      string        `json:"input"`
	Output     string        `json:"output"`
	SampleRate float64       `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Frames     int64         `json:"frames"`
	Bytes      int64         `json:"bytes"`
	PeakDBFS   float64       `json:"peak_dbfs"`
	RMSDBFS    float64       `json:"rms_dbfs"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Exit       string        `json:"exit"`
	Error      string        `json:"error,omitempty"`
}

// Length returns the duration of the rendered audio.
func (r RenderResult) Length() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(r.Frames) / r.SampleRate * float64(time.Second))
}

func writeRenderResults(w io.Writer, results []RenderResult) error {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			if _, err := fmt.Fprintf(w, "✗ %s: %s\n", r.Input, r.Error); err != nil {
				return err
			}
			continue
		}
		_, err := fmt.Fprintf(w, "✓ %s -> %s\n    %s, %s frames, %g Hz x %d, %s, peak %.1f dBFS (rendered in %s, %s)\n",
			r.Input, r.Output,
			shortDuration(r.Length()), humanize.Comma(r.Frames),
			r.SampleRate, r.Channels, humanize.Bytes(uint64(r.Bytes)),
			r.PeakDBFS, shortDuration(r.Elapsed), r.Exit)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d rendered, %d failed\n", len(results)-failed, failed)
	return err
}

// PlayResult summarises a real-time performance.
type PlayResult struct {
	Input     string        `json:"input"`
	Played    time.Duration `json:"played_ns"`
	Exit      string        `json:"exit"`
	Recording string        `json:"recording,omitempty"`
	Underruns int           `json:"underruns,omitempty"`
}

func writePlayResult(w io.Writer, r PlayResult) error {
	if _, err := fmt.Fprintf(w, "%s: %s after %s\n", r.Input, r.Exit, shortDuration(r.Played)); err != nil {
		return err
	}
	if r.Recording != "" {
		if _, err := fmt.Fprintf(w, "recorded to %s\n", r.Recording); err != nil {
			return err
		}
	}
	if r.Underruns > 0 {
		if _, err := fmt.Fprintf(w, "%d buffer underruns\n", r.Underruns); err != nil {
			return err
		}
	}
	return nil
}

func direction(output bool) string {
	if output {
		return "out"
	}
	return "in"
}

func writeAudioDevices(w io.Writer, devs []csound.AudioDevice) error {
	if len(devs) == 0 {
		_, err := fmt.Fprintln(w, "no audio devices")
		return err
	}
	for _, d := range devs {
		_, err := fmt.Fprintf(w, "%-3s %-12s %-24s %-32s %d ch\n",
			direction(d.IsOutput), d.Module, d.ID, d.Name, d.MaxNchnls)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeMidiDevices(w io.Writer, devs []csound.MidiDevice) error {
	if len(devs) == 0 {
		_, err := fmt.Fprintln(w, "no MIDI devices")
		return err
	}
	for _, d := range devs {
		_, err := fmt.Fprintf(w, "%-3s %-12s %-24s %-32s %s\n",
			direction(d.IsOutput), d.Module, d.ID, d.Name, d.Interface)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeOpcodes(w io.Writer, defs []csound.OpcodeDef) error {
	for _, d := range defs {
		out := d.OutTypes
		if out == "" {
			out = "-"
		}
		in := d.InTypes
		if in == "" {
			in = "-"
		}
		if _, err := fmt.Fprintf(w, "%-20s %-8s %s\n", d.Name, out, in); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s opcodes\n", humanize.Comma(int64(len(defs))))
	return err
}
