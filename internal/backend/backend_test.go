package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aspect-build/csound-go/internal/soundfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoFile(t *testing.T, samples ...float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := soundfile.NewWAVWriter(f, 48000, 1, 16)
	require.NoError(t, err)
	require.NoError(t, w.Write(samples, 1))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileInputMapsMonoToAllChannels(t *testing.T) {
	in, err := NewFileInput(monoFile(t, 0.5, -0.5), false, 1)
	require.NoError(t, err)
	defer in.Close()
	assert.Equal(t, 48000, in.SampleRate())

	buf := make([]float64, 4)
	require.NoError(t, in.FillSpin(buf, 2))
	assert.InDeltaSlice(t, []float64{0.5, 0.5, -0.5, -0.5}, buf, 1e-3)
}

func TestFileInputPadsSilenceAtEnd(t *testing.T) {
	in, err := NewFileInput(monoFile(t, 0.5), false, 1)
	require.NoError(t, err)
	defer in.Close()

	buf := make([]float64, 3)
	require.NoError(t, in.FillSpin(buf, 1))
	assert.InDeltaSlice(t, []float64{0.5, 0, 0}, buf, 1e-3)

	clear(buf)
	require.NoError(t, in.FillSpin(buf, 1))
	assert.Equal(t, []float64{0, 0, 0}, buf)
}

func TestFileInputLoops(t *testing.T) {
	in, err := NewFileInput(monoFile(t, 0.25, 0.5), true, 2)
	require.NoError(t, err)
	defer in.Close()

	buf := make([]float64, 5)
	require.NoError(t, in.FillSpin(buf, 1))
	assert.InDeltaSlice(t, []float64{0.5, 1, 0.5, 1, 0.5}, buf, 1e-3)
}

func TestFileInputAddsToBuffer(t *testing.T) {
	in, err := NewFileInput(monoFile(t, 0.25), false, 1)
	require.NoError(t, err)
	defer in.Close()

	buf := []float64{0.25}
	require.NoError(t, in.FillSpin(buf, 1))
	assert.InDelta(t, 0.5, buf[0], 1e-3)
}

func TestWAVOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	out, err := NewWAVOutput(path, 44100, 2, 16, 2)
	require.NoError(t, err)

	require.NoError(t, out.WriteSpout([]float64{1, -1, 0.5, 0}, 2))
	assert.Equal(t, 2, out.Frames())
	require.NoError(t, out.Close())

	src, err := soundfile.Open(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 2, src.Channels())

	got := make([]float64, 4)
	n, err := src.ReadSamples(got)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.InDeltaSlice(t, []float64{0.5, -0.5, 0.25, 0}, got, 1e-3)
}

func TestRingUnderrunPlaysSilence(t *testing.T) {
	r := newRing(8)
	require.NoError(t, r.write([]float64{1, 2}, 0.5))

	out := make([]float32, 4)
	r.read(out)
	assert.Equal(t, []float32{0.5, 1, 0, 0}, out)
	assert.Equal(t, 1, r.underruns())
}

func TestRingWriterWaitsForSpace(t *testing.T) {
	r := newRing(2)
	require.NoError(t, r.write([]float64{1, 2}, 1))

	written := make(chan error, 1)
	go func() { written <- r.write([]float64{3}, 1) }()

	select {
	case <-written:
		t.Fatal("write should block while the ring is full")
	case <-time.After(20 * time.Millisecond):
	}

	out := make([]float32, 1)
	r.read(out)
	assert.Equal(t, float32(1), out[0])

	select {
	case err := <-written:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not resume after read")
	}
}

func TestRingCloseReleasesWriter(t *testing.T) {
	r := newRing(1)
	require.NoError(t, r.write([]float64{1}, 1))

	written := make(chan error, 1)
	go func() { written <- r.write([]float64{2}, 1) }()
	time.Sleep(10 * time.Millisecond)
	r.close()

	select {
	case err := <-written:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not release writer")
	}
}
