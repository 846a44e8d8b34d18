// Package backend provides host-side audio inputs and outputs for a
// performance thread running with host-implemented audio I/O.
package backend

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aspect-build/csound-go/internal/soundfile"
)

var ErrClosed = errors.New("backend: closed")

// FileInput plays a sound file into the engine's input buffer.
//
// Source channels are mapped onto engine channels round-robin, so a mono
// file feeds every input channel. When the file ends the input either loops
// or supplies silence.
type FileInput struct {
	path string
	src  soundfile.Source
	loop bool
	gain float64
	tmp  []float64
	done bool
}

// NewFileInput opens path. Samples are multiplied by gain, which is usually
// the engine's 0dbfs.
func NewFileInput(path string, loop bool, gain float64) (*FileInput, error) {
	src, err := soundfile.Open(path)
	if err != nil {
		return nil, err
	}
	if gain == 0 {
		gain = 1
	}
	return &FileInput{path: path, src: src, loop: loop, gain: gain}, nil
}

// SampleRate returns the file's sample rate.
func (in *FileInput) SampleRate() int { return in.src.SampleRate() }

// FillSpin adds one control period of file samples to buf.
func (in *FileInput) FillSpin(buf []float64, nchnls int) error {
	if in.done || nchnls <= 0 || len(buf) == 0 {
		return nil
	}
	frames := len(buf) / nchnls
	srcCh := in.src.Channels()
	need := frames * srcCh
	if cap(in.tmp) < need {
		in.tmp = make([]float64, need)
	}
	tmp := in.tmp[:need]

	got := 0
	for got < need {
		n, err := in.src.ReadSamples(tmp[got:])
		got += n
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("backend: %s: %w", in.path, err)
		}
		if !in.loop {
			in.done = true
			break
		}
		if err := in.rewind(); err != nil {
			return err
		}
	}
	clear(tmp[got:])

	for f := 0; f < frames; f++ {
		for ch := 0; ch < nchnls; ch++ {
			buf[f*nchnls+ch] += tmp[f*srcCh+ch%srcCh] * in.gain
		}
	}
	return nil
}

func (in *FileInput) rewind() error {
	in.src.Close()
	src, err := soundfile.Open(in.path)
	if err != nil {
		in.done = true
		return err
	}
	in.src = src
	return nil
}

// Close releases the file.
func (in *FileInput) Close() error {
	return in.src.Close()
}

// WAVOutput writes the engine's output buffer to a WAV file.
type WAVOutput struct {
	path  string
	f     *os.File
	w     *soundfile.WAVWriter
	scale float64
}

// NewWAVOutput creates path. zeroDBFS is the engine's full-scale amplitude.
func NewWAVOutput(path string, sampleRate, channels, bits int, zeroDBFS float64) (*WAVOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	w, err := soundfile.NewWAVWriter(f, sampleRate, channels, bits)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	scale := 1.0
	if zeroDBFS > 0 {
		scale = 1 / zeroDBFS
	}
	return &WAVOutput{path: path, f: f, w: w, scale: scale}, nil
}

func (o *WAVOutput) WriteSpout(buf []float64, _ int) error {
	return o.w.Write(buf, o.scale)
}

// Frames returns the number of frames written.
func (o *WAVOutput) Frames() int { return o.w.Frames() }

// Close finalises and closes the file.
func (o *WAVOutput) Close() error {
	err := o.w.Close()
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	return err
}
