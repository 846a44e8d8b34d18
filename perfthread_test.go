package csound_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	csound "github.com/aspect-build/csound-go"
	"github.com/aspect-build/csound-go/internal/csoundtest"
	"github.com/aspect-build/csound-go/internal/soundfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newThread(t *testing.T, e csound.Engine, opts ...csound.ThreadOption) *csound.PerformanceThread {
	t.Helper()
	opts = append([]csound.ThreadOption{csound.WithThreadLogger(quietLogger())}, opts...)
	pt, err := csound.NewPerformanceThread(e, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		pt.Stop()
		pt.Join()
	})
	return pt
}

func TestSyncRunsEarlierTasksInOrder(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	pt.Play()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, pt.Sync(time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPlayStopJoin(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)
	assert.Equal(t, csound.StatusPaused, pt.Status())

	pt.Play()
	assert.Equal(t, csound.StatusPlaying, pt.Status())
	require.Eventually(t, func() bool { return e.Cycles() > 0 }, time.Second, time.Millisecond)

	pt.Stop()
	joined := make(chan struct{})
	go func() {
		pt.Join()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("join did not return after stop")
	}

	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitStopped, code)
	assert.True(t, code.OK())
	assert.Equal(t, csound.StatusStopped, pt.Status())
	assert.False(t, pt.IsRunning())
}

func TestJoinIsIdempotent(t *testing.T) {
	e := csoundtest.New()
	e.FinishAfter = 3
	pt := newThread(t, e)
	pt.Play()

	code1, err1 := pt.Join()
	code2, err2 := pt.Join()
	assert.Equal(t, csound.ExitScoreEnd, code1)
	assert.Equal(t, code1, code2)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 3, e.Cycles())
}

func TestSubmitAfterJoinFails(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	pt.Play()
	pt.Stop()
	pt.Join()

	err := pt.Submit(func(csound.Engine, *csound.PerformanceThread) error { return nil })
	assert.ErrorIs(t, err, csound.ErrQueueClosed)
}

func TestEvalCode(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	pt.Play()

	v, err := pt.EvalCode("return 2+2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = pt.EvalCode("", time.Second)
	assert.ErrorIs(t, err, csound.ErrEmptyCode)

	_, err = pt.EvalCode("garbage", time.Second)
	assert.ErrorIs(t, err, csoundtest.ErrEval)
}

func TestEvalCodeAsyncCallsBackOnce(t *testing.T) {
	pt := newThread(t, csoundtest.New())

	var calls atomic.Int32
	got := make(chan float64, 2)
	start := time.Now()
	err := pt.EvalCodeAsync("return 2+2", func(v float64, err error) {
		assert.NoError(t, err)
		calls.Add(1)
		got <- v
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	pt.Play()
	select {
	case v := <-got:
		assert.Equal(t, 4.0, v)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	require.NoError(t, pt.Sync(time.Second))
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, pt.EvalCodeAsync("", nil), csound.ErrEmptyCode)
}

func TestStopAbandonsQueuedTasks(t *testing.T) {
	pt := newThread(t, csoundtest.New())

	release := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		close(running)
		<-release
		return nil
	}))
	<-running

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
			ran.Add(1)
			return nil
		}))
	}
	got := make(chan error, 1)
	require.NoError(t, pt.EvalCodeAsync("return 1", func(_ float64, err error) { got <- err }))

	pt.Stop()
	close(release)

	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitStopped, code)
	assert.Zero(t, ran.Load(), "tasks queued before Stop must not run")

	select {
	case err := <-got:
		assert.ErrorIs(t, err, csound.ErrThreadStopped)
	case <-time.After(time.Second):
		t.Fatal("callback not called for abandoned task")
	}
}

func TestSecondQueueAttachFails(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	pt.Play()

	q1 := csound.NewTaskQueue()
	require.NoError(t, pt.AttachQueue(q1))
	assert.ErrorIs(t, pt.AttachQueue(csound.NewTaskQueue()), csound.ErrQueueAttached)

	ran := make(chan struct{})
	require.NoError(t, q1.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		close(ran)
		return nil
	}))
	require.NoError(t, pt.Sync(time.Second))
	select {
	case <-ran:
	default:
		t.Fatal("task on first queue did not run")
	}
}

func TestQueueCannotServeTwoThreads(t *testing.T) {
	pt1 := newThread(t, csoundtest.New())
	pt2 := newThread(t, csoundtest.New())

	q := csound.NewTaskQueue()
	require.NoError(t, pt1.AttachQueue(q))
	assert.ErrorIs(t, pt2.AttachQueue(q), csound.ErrQueueInUse)
}

func TestQueueSubmittedBeforeAttachRuns(t *testing.T) {
	pt := newThread(t, csoundtest.New())

	q := csound.NewTaskQueue()
	var ran atomic.Bool
	require.NoError(t, q.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, pt.AttachQueue(q))
	require.NoError(t, pt.Sync(time.Second))
	assert.True(t, ran.Load())
}

func TestPausedThreadRunsTasksWithoutRendering(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)

	var runs atomic.Int32
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, pt.Sync(time.Second))
	assert.Equal(t, int32(1), runs.Load())
	assert.Zero(t, e.Cycles())

	pt.Play()
	require.NoError(t, pt.Sync(time.Second))
	assert.Equal(t, int32(1), runs.Load())
	require.Eventually(t, func() bool { return e.Cycles() > 0 }, time.Second, time.Millisecond)
}

func TestPauseStopsRendering(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)

	pt.Play()
	require.Eventually(t, func() bool { return e.Cycles() > 0 }, time.Second, time.Millisecond)
	pt.Pause()
	require.NoError(t, pt.Sync(time.Second))
	n := e.Cycles()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, e.Cycles())
	assert.Equal(t, csound.StatusPaused, pt.Status())

	pt.TogglePause()
	assert.Equal(t, csound.StatusPlaying, pt.Status())
	pt.TogglePause()
	assert.Equal(t, csound.StatusPaused, pt.Status())
}

func TestTaskFailuresDoNotStopTheLoop(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)
	pt.Play()

	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		return errors.New("boom")
	}))
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		panic("kaboom")
	}))
	v, err := pt.EvalCode("return 1+2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	assert.True(t, pt.IsRunning())
}

func TestSyncTimeout(t *testing.T) {
	pt := newThread(t, csoundtest.New())

	release := make(chan struct{})
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		<-release
		return nil
	}))
	err := pt.Sync(20 * time.Millisecond)
	assert.ErrorIs(t, err, csound.ErrTimeout)
	assert.False(t, csound.IsEngineError(err))
	close(release)
	require.NoError(t, pt.Sync(time.Second))
}

func TestEngineErrorEndsLoop(t *testing.T) {
	e := csoundtest.New()
	e.FailAfter = 2
	pt := newThread(t, e)
	pt.Play()

	code, err := pt.Join()
	require.Error(t, err)
	assert.True(t, csound.IsEngineError(err))
	assert.Equal(t, csound.ExitCode(csound.Performance), code)
	assert.False(t, code.OK())

	code2, err2 := pt.Join()
	assert.Equal(t, code, code2)
	assert.Equal(t, err, err2)
}

func TestSyncAfterStopFails(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	pt.Stop()
	pt.Join()
	assert.ErrorIs(t, pt.Sync(time.Second), csound.ErrQueueClosed)
}

func TestOneThreadPerEngine(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)

	_, err := csound.NewPerformanceThread(e)
	assert.ErrorIs(t, err, csound.ErrThreadAttached)

	pt.Stop()
	pt.Join()
	pt2 := newThread(t, e)
	assert.NotEqual(t, pt.ID(), pt2.ID())
}

func TestPlayAfterSubmitWhilePaused(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	var runs atomic.Int32
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		runs.Add(1)
		return nil
	}))
	pt.Play()
	require.NoError(t, pt.Sync(time.Second))
	assert.Equal(t, int32(1), runs.Load())
}

func TestDrainCapPerCycle(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e, csound.WithMaxTasksPerCycle(2))
	assert.Equal(t, 2, pt.MaxTasksPerCycle())

	var cycles []int
	var mu sync.Mutex
	q := csound.NewTaskQueue()
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Submit(func(e csound.Engine, _ *csound.PerformanceThread) error {
			mu.Lock()
			cycles = append(cycles, e.(*csoundtest.Engine).Cycles())
			mu.Unlock()
			return nil
		}))
	}
	pt.Play()
	require.NoError(t, pt.AttachQueue(q))
	require.NoError(t, pt.Sync(time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, cycles, 6)
	for i := 2; i < 6; i++ {
		assert.Greater(t, cycles[i], cycles[i-2], "at most two tasks per cycle")
	}
}

func TestScoreEvent(t *testing.T) {
	e := csoundtest.New()
	pt := newThread(t, e)
	require.NoError(t, pt.SetScoreOffsetSeconds(1.5))
	require.NoError(t, pt.ScoreEvent(true, csound.EventInstrument, 1, 2, 0.5))
	require.NoError(t, pt.ScoreEvent(false, csound.EventInstrument, 1, 2, 0.5))
	require.NoError(t, pt.InputMessage("i 2 0 1"))
	assert.ErrorIs(t, pt.ScoreEvent(false, csound.EventKind(9)), csound.ErrInvalidEvent)
	require.NoError(t, pt.FlushMessageQueue())

	events := e.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []float64{1, 0.5, 0.5}, events[0].PFields)
	assert.Equal(t, []float64{1, 2, 0.5}, events[1].PFields)
	assert.Equal(t, "i 2 0 1", events[2].Line)
	assert.Equal(t, 1.5, e.ScoreOffset())
}

func TestProcessCallback(t *testing.T) {
	e := csoundtest.New()
	e.FinishAfter = 5
	pt := newThread(t, e)

	var calls atomic.Int32
	require.NoError(t, pt.SetProcessCallback(func(csound.Engine) { calls.Add(1) }))
	assert.ErrorIs(t, pt.SetProcessCallback(func(csound.Engine) {}), csound.ErrCallbackSet)

	pt.Play()
	pt.Join()
	assert.Equal(t, int32(5), calls.Load())
}

type constInput float64

func (c constInput) FillSpin(buf []float64, _ int) error {
	for i := range buf {
		buf[i] += float64(c)
	}
	return nil
}

type captureOutput struct {
	mu     sync.Mutex
	frames int
	last   []float64
}

func (o *captureOutput) WriteSpout(buf []float64, nchnls int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames += len(buf) / nchnls
	o.last = append(o.last[:0], buf...)
	return nil
}

func TestInputsAndOutputs(t *testing.T) {
	e := csoundtest.New(csoundtest.WithFormat(44100, 4, 2, 1))
	e.FinishAfter = 3
	pt := newThread(t, e)

	out := &captureOutput{}
	require.NoError(t, pt.AddInput(constInput(0.25)))
	require.NoError(t, pt.AddInput(constInput(0.5)))
	require.NoError(t, pt.AddOutput(out))
	pt.Play()
	pt.Join()

	assert.Equal(t, []float64{0.75, 0.75, 0.75, 0.75}, e.LastSpin())
	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, 12, out.frames)
	assert.Equal(t, []float64{0, 0, 0.25, 0.25, 0.5, 0.5, 0.75, 0.75}, out.last)
}

type panicOutput struct{ calls atomic.Int32 }

func (o *panicOutput) WriteSpout([]float64, int) error {
	o.calls.Add(1)
	panic("sound card unplugged")
}

type panicInput struct{ calls atomic.Int32 }

func (in *panicInput) FillSpin([]float64, int) error {
	in.calls.Add(1)
	panic("stream closed")
}

func TestPanickingBackendsAreDetached(t *testing.T) {
	e := csoundtest.New(csoundtest.WithFormat(44100, 4, 2, 1))
	e.FinishAfter = 4
	pt := newThread(t, e)

	var process atomic.Int32
	require.NoError(t, pt.SetProcessCallback(func(csound.Engine) {
		process.Add(1)
		panic("bad callback")
	}))
	badIn, badOut := &panicInput{}, &panicOutput{}
	out := &captureOutput{}
	require.NoError(t, pt.AddInput(badIn))
	require.NoError(t, pt.AddInput(constInput(0.5)))
	require.NoError(t, pt.AddOutput(badOut))
	require.NoError(t, pt.AddOutput(out))
	pt.Play()

	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitScoreEnd, code)
	assert.Equal(t, int32(1), process.Load())
	assert.Equal(t, int32(1), badIn.calls.Load())
	assert.Equal(t, int32(1), badOut.calls.Load())
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, e.LastSpin())

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, 16, out.frames)
}

func TestRecordContextTimeoutCreatesNoFile(t *testing.T) {
	pt := newThread(t, csoundtest.New(csoundtest.WithFormat(8000, 8, 1, 1)))

	release := make(chan struct{})
	require.NoError(t, pt.Submit(func(csound.Engine, *csound.PerformanceThread) error {
		<-release
		return nil
	}))

	path := filepath.Join(t.TempDir(), "late.wav")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pt.RecordContext(ctx, path, 16), csound.ErrTimeout)

	close(release)
	require.NoError(t, pt.Sync(time.Second))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "abandoned record request must not open %s", path)
	assert.ErrorIs(t, pt.StopRecord(), csound.ErrNotRecording)
}

func TestRecord(t *testing.T) {
	e := csoundtest.New(csoundtest.WithFormat(8000, 8, 1, 1))
	e.FinishAfter = 10
	pt := newThread(t, e)

	assert.ErrorIs(t, pt.StopRecord(), csound.ErrNotRecording)

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, pt.Record(path, 16))
	pt.Play()
	code, err := pt.Join()
	require.NoError(t, err)
	assert.Equal(t, csound.ExitScoreEnd, code)

	src, err := soundfile.Open(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 8000, src.SampleRate())

	buf := make([]float64, 200)
	n, err := src.ReadSamples(buf)
	require.NoError(t, err)
	assert.Equal(t, 80, n)
	assert.InDelta(t, 0.5, buf[4], 1e-3)
}

func TestRecordBadDepth(t *testing.T) {
	pt := newThread(t, csoundtest.New())
	err := pt.Record(filepath.Join(t.TempDir(), "bad.wav"), 12)
	assert.ErrorIs(t, err, soundfile.ErrUnsupportedDepth)
}

func TestThreadStatusStrings(t *testing.T) {
	assert.Equal(t, "paused", csound.StatusPaused.String())
	assert.Equal(t, "playing", csound.StatusPlaying.String())
	assert.Equal(t, "stopped", csound.StatusStopped.String())
	assert.Equal(t, "score end", csound.ExitScoreEnd.String())
	assert.Equal(t, "stopped", csound.ExitStopped.String())
	assert.Equal(t, "performance failed", csound.ExitCode(csound.Performance).String())
}
