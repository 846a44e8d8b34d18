package soundfile

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVWriter encodes interleaved float samples as integer PCM.
type WAVWriter struct {
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	maxInt float64
	frames int
}

// NewWAVWriter starts a PCM WAV stream on w. bits is 16, 24 or 32.
func NewWAVWriter(w io.WriteSeeker, sampleRate, channels, bits int) (*WAVWriter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, ErrInvalidParameters
	}
	if bits != 16 && bits != 24 && bits != 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, bits)
	}
	return &WAVWriter{
		enc: wav.NewEncoder(w, sampleRate, bits, channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bits,
		},
		maxInt: math.Exp2(float64(bits-1)) - 1,
	}, nil
}

// Write appends samples after multiplying them by scale. Values outside
// [-1, 1] are clipped.
func (w *WAVWriter) Write(samples []float64, scale float64) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, v := range samples {
		w.buf.Data[i] = int(math.Round(clip(v*scale) * w.maxInt))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("soundfile: %w", err)
	}
	w.frames += len(samples) / w.buf.Format.NumChannels
	return nil
}

// Frames returns the number of frames written.
func (w *WAVWriter) Frames() int { return w.frames }

// Close finalises the WAV header. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("soundfile: %w", err)
	}
	return nil
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
