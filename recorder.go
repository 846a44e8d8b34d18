package csound

import (
	"context"
	"fmt"
	"os"

	"github.com/aspect-build/csound-go/internal/soundfile"
)

// recorder writes the engine output to a WAV file.
type recorder struct {
	path  string
	file  *os.File
	w     *soundfile.WAVWriter
	scale float64
}

func (r *recorder) WriteSpout(buf []float64, _ int) error {
	return r.w.Write(buf, r.scale)
}

func (r *recorder) close() error {
	err := r.w.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Record starts writing the engine output to a WAV file at path with the
// given bits per sample (16, 24 or 32). Sample rate and channel count come
// from the engine. A recording already in progress is finished first.
// Record waits up to DefaultTimeout for the render loop.
func (pt *PerformanceThread) Record(path string, bits int) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return pt.RecordContext(ctx, path, bits)
}

// RecordContext is Record bounded by ctx. When ctx ends before the render
// loop gets to the request, no file is created.
func (pt *PerformanceThread) RecordContext(ctx context.Context, path string, bits int) error {
	_, err := pt.call(ctx, func(e Engine) (float64, error) {
		pt.closeRecorder()

		f, err := os.Create(path)
		if err != nil {
			return 0, fmt.Errorf("csound: record: %w", err)
		}
		w, err := soundfile.NewWAVWriter(f, int(e.Sr()), e.Nchnls(), bits)
		if err != nil {
			f.Close()
			os.Remove(path)
			return 0, fmt.Errorf("csound: record: %w", err)
		}
		scale := 1.0
		if z := e.ZeroDBFS(); z > 0 {
			scale = 1 / z
		}
		pt.recorder = &recorder{path: path, file: f, w: w, scale: scale}
		pt.logger.Info("recording started", "path", path, "bits", bits)
		return 0, nil
	})
	return err
}

// StopRecord finishes the current recording.
func (pt *PerformanceThread) StopRecord() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	_, err := pt.call(ctx, func(Engine) (float64, error) {
		if pt.recorder == nil {
			return 0, ErrNotRecording
		}
		return 0, pt.closeRecorder()
	})
	return err
}

// closeRecorder runs on the render loop.
func (pt *PerformanceThread) closeRecorder() error {
	if pt.recorder == nil {
		return nil
	}
	r := pt.recorder
	pt.recorder = nil
	err := r.close()
	if err != nil {
		pt.logger.Error("closing recording failed", "path", r.path, "error", err)
	} else {
		pt.logger.Info("recording finished", "path", r.path)
	}
	return err
}
