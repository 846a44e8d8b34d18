package csound_test

import (
	"testing"
	"time"

	csound "github.com/aspect-build/csound-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrc = `
sr = 44100
ksmps = 32
nchnls = 2
0dbfs = 1

instr 1
  kamp chnget "amp"
  aout oscili kamp, p4
  outs aout, aout
endin
`

// newInstance returns a started engine rendering to nowhere, or skips when
// libcsound is not installed.
func newInstance(t *testing.T) *csound.Csound {
	t.Helper()
	cs, err := csound.New(csound.WithLogger(quietLogger()), csound.WithMessageBuffer(false))
	if err != nil {
		t.Skipf("libcsound not available: %v", err)
	}
	t.Cleanup(func() { cs.Close() })

	require.NoError(t, cs.SetOption("-n"))
	require.NoError(t, cs.CompileOrc(testOrc))
	require.NoError(t, cs.Start())
	return cs
}

func TestInstanceAttributes(t *testing.T) {
	cs := newInstance(t)
	assert.Equal(t, 44100.0, cs.Sr())
	assert.Equal(t, 32, cs.Ksmps())
	assert.Equal(t, 2, cs.Nchnls())
	assert.Equal(t, 1.0, cs.ZeroDBFS())
	assert.Equal(t, 8, cs.SizeOfMYFLT())
	assert.Len(t, cs.Spout(), 64)
	assert.Positive(t, csound.Version())
}

func TestInstanceEvalCode(t *testing.T) {
	cs := newInstance(t)
	v, err := cs.EvalCode("return 2+2")
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = cs.EvalCode("")
	assert.ErrorIs(t, err, csound.ErrEmptyCode)
}

func TestInstanceControlChannel(t *testing.T) {
	cs := newInstance(t)
	cs.SetControlChannel("amp", 0.25)
	v, err := cs.ControlChannel("amp")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	require.NoError(t, cs.Event(csound.EventInstrument, 1, 0, 0.1, 440))
	for i := 0; i < 10; i++ {
		_, err := cs.PerformKsmps()
		require.NoError(t, err)
	}
	assert.Greater(t, cs.ScoreTime(), 0.0)

	info, err := cs.ChannelInfo("amp")
	require.NoError(t, err)
	assert.Equal(t, csound.ControlChannel, info.Kind)
}

func TestInstanceCloseWithThread(t *testing.T) {
	cs := newInstance(t)
	pt, err := csound.NewPerformanceThread(cs, csound.WithThreadLogger(quietLogger()))
	require.NoError(t, err)

	assert.ErrorIs(t, cs.Close(), csound.ErrThreadRunning)

	pt.Play()
	v, err := pt.EvalCode("return 1+1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	pt.Stop()
	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitStopped, code)
	assert.NoError(t, cs.Close())
	assert.NoError(t, cs.Close())
}

func TestInstanceTable(t *testing.T) {
	cs := newInstance(t)
	require.NoError(t, cs.CompileOrc(`gi_t ftgen 100, 0, 8, -2, 1, 2, 3, 4, 5, 6, 7, 8`))

	n, err := cs.TableLength(100)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	data, err := cs.Table(100)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, data)

	_, err = cs.TableLength(999)
	assert.ErrorIs(t, err, csound.ErrTableNotFound)
}

func TestCircularBuffer(t *testing.T) {
	cs := newInstance(t)
	buf, err := cs.NewCircularBuffer(16)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, 3, buf.Write([]float64{1, 2, 3}))
	peek := make([]float64, 2)
	assert.Equal(t, 2, buf.Peek(peek))
	assert.Equal(t, []float64{1, 2}, peek)

	out := make([]float64, 4)
	assert.Equal(t, 3, buf.Read(out))
	assert.Equal(t, []float64{1, 2, 3}, out[:3])
}
