package csound_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csound "github.com/aspect-build/csound-go"
	"github.com/aspect-build/csound-go/internal/csoundtest"
)

func TestLevelMeterSilence(t *testing.T) {
	m := csound.NewLevelMeter(1)
	assert.Equal(t, float64(csound.SilenceDBFS), m.Peak())
	assert.Equal(t, float64(csound.SilenceDBFS), m.RMS())

	require.NoError(t, m.WriteSpout(make([]float64, 64), 2))
	assert.Equal(t, float64(csound.SilenceDBFS), m.Peak())
	assert.Equal(t, float64(csound.SilenceDBFS), m.RMS())
}

func TestLevelMeterFullScale(t *testing.T) {
	m := csound.NewLevelMeter(32768)
	buf := []float64{32768, -32768, 32768, -32768}
	require.NoError(t, m.WriteSpout(buf, 2))
	assert.InDelta(t, 0, m.Peak(), 1e-9)
	assert.InDelta(t, 0, m.RMS(), 1e-9)

	m.Reset()
	require.NoError(t, m.WriteSpout([]float64{16384, 0}, 1))
	assert.InDelta(t, -6.02, m.Peak(), 0.01)
	// rms of {0.5, 0} is 0.5/sqrt(2)
	assert.InDelta(t, -9.03, m.RMS(), 0.01)
}

func TestLevelMeterOnThread(t *testing.T) {
	e := csoundtest.New()
	e.FinishAfter = 4
	pt := newThread(t, e)
	m := csound.NewLevelMeter(e.ZeroDBFS())
	require.NoError(t, pt.AddOutput(m))
	pt.Play()
	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitScoreEnd, code)
	assert.Greater(t, m.Peak(), float64(csound.SilenceDBFS))
	assert.LessOrEqual(t, m.RMS(), m.Peak())
}
