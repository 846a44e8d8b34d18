// Package soundfile decodes and encodes the sound files used as engine
// inputs and recordings.
//
// Decoding supports WAV (go-audio), MP3 (go-mp3) and Ogg Vorbis (oggvorbis). All sources produce interleaved float64 samples in [-1, 1].
package soundfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownFormat     = errors.New("soundfile: unknown format")
	ErrNotWavFile        = errors.New("soundfile: not a WAV file")
	ErrUnsupportedDepth  = errors.New("soundfile: unsupported bit depth")
	ErrInvalidParameters = errors.New("soundfile: invalid sample rate or channel count")
)

// Source is a stream of interleaved samples.
type Source interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels count (1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number
	// of values written. It returns 0, io.EOF when the stream is finished.
	ReadSamples(dst []float64) (int, error)
	Close() error
}

// Format names a supported container.
type Format string

const (
	WAV    Format = "wav"
	MP3    Format = "mp3"
	Vorbis Format = "ogg"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return WAV, nil
	case ".mp3":
		return MP3, nil
	case ".ogg", ".oga":
		return Vorbis, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Open opens and decodes a sound file. The returned source owns the file.
func Open(path string) (Source, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("soundfile: %w", err)
	}
	src, err := Decode(format, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{Source: src, f: f}, nil
}

// Decode reads a stream of the given format.
func Decode(format Format, r io.ReadSeeker) (Source, error) {
	switch format {
	case WAV:
		return decodeWAV(r)
	case MP3:
		return decodeMP3(r)
	case Vorbis:
		return decodeVorbis(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	err := s.Source.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// intScale returns the magnitude of full scale for a PCM bit depth.
func intScale(bits int) (float64, error) {
	switch bits {
	case 8:
		return 128, nil
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedDepth, bits)
}
