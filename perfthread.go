package csound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultMaxTasksPerCycle is the number of tasks drained between two
// control periods unless WithMaxTasksPerCycle says otherwise.
const DefaultMaxTasksPerCycle = 10

// DefaultTimeout bounds the helpers that wait for the render loop without
// taking a timeout of their own (FlushMessageQueue, Record, StopRecord).
const DefaultTimeout = 5 * time.Second

// ThreadStatus is the state of a performance thread.
type ThreadStatus int32

const (
	StatusPaused ThreadStatus = iota
	StatusPlaying
	StatusStopped
)

func (s ThreadStatus) String() string {
	switch s {
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("ThreadStatus(%d)", int32(s))
}

// ExitCode is the result of a finished render loop: positive for a normal
// end, negative (the native status) for an engine error.
type ExitCode int

const (
	ExitScoreEnd ExitCode = 1
	ExitStopped  ExitCode = 2
)

func (c ExitCode) String() string {
	switch {
	case c == ExitScoreEnd:
		return "score end"
	case c == ExitStopped:
		return "stopped"
	case c < 0:
		return statusText(int(c))
	}
	return fmt.Sprintf("ExitCode(%d)", int(c))
}

// OK reports whether the loop ended without an engine error.
func (c ExitCode) OK() bool { return c > 0 }

// ThreadOption configures a PerformanceThread.
type ThreadOption func(*PerformanceThread)

// WithMaxTasksPerCycle caps the tasks run between two control periods.
// Values below 1 keep the default.
func WithMaxTasksPerCycle(n int) ThreadOption {
	return func(pt *PerformanceThread) {
		if n > 0 {
			pt.maxTasks = n
		}
	}
}

// WithThreadLogger sets the render loop's logger.
func WithThreadLogger(logger *slog.Logger) ThreadOption {
	return func(pt *PerformanceThread) {
		if logger != nil {
			pt.logger = logger
		}
	}
}

// WithTaskErrorRate limits how often failing tasks are logged.
func WithTaskErrorRate(every time.Duration, burst int) ThreadOption {
	return func(pt *PerformanceThread) {
		pt.errLimiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// PerformanceThread drives an engine on its own goroutine, one control
// period at a time, and runs queued tasks between periods.
//
// The loop starts paused. While paused or playing it drains up to
// MaxTasksPerCycle tasks per iteration; while playing it then renders one
// control period. Stop is terminal and must be followed by Join.
//
// Thread-safety model:
//   - Play, Pause, TogglePause, Stop, Submit: safe from any goroutine, never block
//   - Join, Sync, EvalCode: block the caller
//   - engine state: touched only by the render loop while the thread exists
type PerformanceThread struct {
	id       string
	engine   Engine
	logger   *slog.Logger
	maxTasks int

	status atomic.Int32
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   *TaskQueue
	exited  bool
	process func(Engine)

	exitCode ExitCode
	exitErr  error

	// Render loop only.
	inputs     []AudioInput
	outputs    []AudioOutput
	recorder   *recorder
	errLimiter *rate.Limiter
	suppressed int
}

var (
	threadsMu sync.Mutex
	threads   = make(map[Engine]*PerformanceThread)
)

func boundThread(e Engine) *PerformanceThread {
	threadsMu.Lock()
	defer threadsMu.Unlock()
	return threads[e]
}

// NewPerformanceThread binds a render loop to e and starts it paused. The
// engine should already be compiled and started. An engine accepts one
// performance thread at a time.
func NewPerformanceThread(e Engine, opts ...ThreadOption) (*PerformanceThread, error) {
	pt := &PerformanceThread{
		id:         uuid.Must(uuid.NewV7()).String(),
		engine:     e,
		logger:     slog.Default(),
		maxTasks:   DefaultMaxTasksPerCycle,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		errLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	if l, ok := e.(interface{ Logger() *slog.Logger }); ok && l.Logger() != nil {
		pt.logger = l.Logger()
	}
	for _, opt := range opts {
		opt(pt)
	}
	pt.logger = pt.logger.With("thread", pt.id)
	pt.status.Store(int32(StatusPaused))

	threadsMu.Lock()
	if _, ok := threads[e]; ok {
		threadsMu.Unlock()
		return nil, ErrThreadAttached
	}
	threads[e] = pt
	threadsMu.Unlock()

	go pt.run()
	return pt, nil
}

// ID returns the thread's identifier as it appears in logs.
func (pt *PerformanceThread) ID() string { return pt.id }

// Engine returns the engine driven by the thread. Only tasks may use it
// while the thread is running.
func (pt *PerformanceThread) Engine() Engine { return pt.engine }

// MaxTasksPerCycle returns the per-cycle drain cap.
func (pt *PerformanceThread) MaxTasksPerCycle() int { return pt.maxTasks }

// Status returns the current state.
func (pt *PerformanceThread) Status() ThreadStatus {
	return ThreadStatus(pt.status.Load())
}

// IsRunning reports whether the render loop is still alive.
func (pt *PerformanceThread) IsRunning() bool {
	select {
	case <-pt.done:
		return false
	default:
		return true
	}
}

// Done is closed when the render loop has exited.
func (pt *PerformanceThread) Done() <-chan struct{} { return pt.done }

// Play starts or resumes rendering. No-op when playing or stopped.
func (pt *PerformanceThread) Play() {
	if pt.status.CompareAndSwap(int32(StatusPaused), int32(StatusPlaying)) {
		pt.notify()
	}
}

// Pause suspends rendering. Tasks keep running while paused.
func (pt *PerformanceThread) Pause() {
	pt.status.CompareAndSwap(int32(StatusPlaying), int32(StatusPaused))
}

// TogglePause switches between playing and paused.
func (pt *PerformanceThread) TogglePause() {
	for {
		switch s := pt.Status(); s {
		case StatusPaused:
			if pt.status.CompareAndSwap(int32(s), int32(StatusPlaying)) {
				pt.notify()
				return
			}
		case StatusPlaying:
			if pt.status.CompareAndSwap(int32(s), int32(StatusPaused)) {
				return
			}
		default:
			return
		}
	}
}

// Stop ends the performance. Queued tasks that have not run are abandoned.
// The thread cannot be restarted.
func (pt *PerformanceThread) Stop() {
	pt.status.Store(int32(StatusStopped))
	pt.notify()
}

// Join waits for the render loop to exit and returns how it ended. It can be
// called any number of times.
func (pt *PerformanceThread) Join() (ExitCode, error) {
	<-pt.done
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.exitCode, pt.exitErr
}

func (pt *PerformanceThread) notify() {
	select {
	case pt.wake <- struct{}{}:
	default:
	}
}

// AttachQueue gives the thread its task queue. A thread has at most one
// queue: attaching a second fails with ErrQueueAttached and the first keeps
// working. Submit attaches a fresh queue on first use.
func (pt *PerformanceThread) AttachQueue(q *TaskQueue) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.exited {
		return ErrThreadStopped
	}
	if pt.queue != nil {
		return ErrQueueAttached
	}
	if err := q.attach(pt); err != nil {
		return err
	}
	pt.queue = q
	if q.Len() > 0 {
		pt.notify()
	}
	return nil
}

// Queue returns the attached task queue, or nil.
func (pt *PerformanceThread) Queue() *TaskQueue {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.queue
}

func (pt *PerformanceThread) taskQueue() (*TaskQueue, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.exited {
		return nil, ErrQueueClosed
	}
	if pt.queue == nil {
		q := NewTaskQueue()
		if err := q.attach(pt); err != nil {
			return nil, err
		}
		pt.queue = q
	}
	return pt.queue, nil
}

// Submit queues t for the render loop. It never waits for t to run.
func (pt *PerformanceThread) Submit(t Task) error {
	_, err := pt.submit(t, nil)
	return err
}

func (pt *PerformanceThread) submit(t Task, cancel func(error)) (string, error) {
	q, err := pt.taskQueue()
	if err != nil {
		return "", err
	}
	return q.push(t, cancel)
}

// SetProcessCallback installs fn, called on the render loop before every
// control period. It can be set once.
func (pt *PerformanceThread) SetProcessCallback(fn func(Engine)) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.process != nil {
		return ErrCallbackSet
	}
	pt.process = fn
	return nil
}

func (pt *PerformanceThread) processCallback() func(Engine) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.process
}

// Sync blocks until every task submitted before it has run, or until
// timeout. A timeout is reported as ErrTimeout.
func (pt *PerformanceThread) Sync(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return pt.SyncContext(ctx)
}

// SyncContext is Sync bounded by ctx.
func (pt *PerformanceThread) SyncContext(ctx context.Context) error {
	_, err := pt.call(ctx, func(Engine) (float64, error) { return 0, nil })
	return err
}

// FlushMessageQueue waits for every pending task with DefaultTimeout.
func (pt *PerformanceThread) FlushMessageQueue() error {
	return pt.Sync(DefaultTimeout)
}

// EvalCode evaluates code on the render loop and waits for its value.
func (pt *PerformanceThread) EvalCode(code string, timeout time.Duration) (float64, error) {
	if code == "" {
		return 0, ErrEmptyCode
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return pt.call(ctx, func(e Engine) (float64, error) {
		return e.EvalCode(code)
	})
}

// EvalCodeAsync evaluates code on the render loop and returns at once. cb
// is called exactly once, on the render loop, with the value or with the
// reason evaluation did not happen.
func (pt *PerformanceThread) EvalCodeAsync(code string, cb func(float64, error)) error {
	if code == "" {
		return ErrEmptyCode
	}
	var once sync.Once
	reply := func(v float64, err error) {
		once.Do(func() {
			if cb != nil {
				cb(v, err)
			}
		})
	}
	_, err := pt.submit(func(e Engine, _ *PerformanceThread) error {
		reply(e.EvalCode(code))
		return nil
	}, func(err error) {
		reply(0, err)
	})
	return err
}

type callResult struct {
	v   float64
	err error
}

// States of a call's task.
const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// call runs fn on the render loop and waits for its result. If ctx ends
// before fn has started, fn is skipped when its turn comes. Once fn has
// started, call waits for it to finish.
func (pt *PerformanceThread) call(ctx context.Context, fn func(Engine) (float64, error)) (float64, error) {
	var state atomic.Int32
	res := make(chan callResult, 1)
	send := func(r callResult) {
		select {
		case res <- r:
		default:
		}
	}
	_, err := pt.submit(func(e Engine, _ *PerformanceThread) error {
		if !state.CompareAndSwap(callPending, callRunning) {
			return nil
		}
		v, err := fn(e)
		send(callResult{v: v, err: err})
		return nil
	}, func(err error) {
		send(callResult{err: err})
	})
	if err != nil {
		return 0, err
	}

	select {
	case r := <-res:
		return r.v, r.err
	case <-ctx.Done():
		if !state.CompareAndSwap(callPending, callAbandoned) {
			r := <-res
			return r.v, r.err
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ErrTimeout
		}
		return 0, ctx.Err()
	}
}

// ScoreEvent sends a score event through the render loop. With absolute,
// p2 is measured from the start of the performance instead of from now.
func (pt *PerformanceThread) ScoreEvent(absolute bool, kind EventKind, pfields ...float64) error {
	if !kind.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidEvent, kind)
	}
	p := append([]float64(nil), pfields...)
	return pt.Submit(func(e Engine, _ *PerformanceThread) error {
		if absolute && len(p) > 1 {
			p[1] -= e.ScoreTime()
		}
		return e.Event(kind, p...)
	})
}

// InputMessage sends score lines through the render loop.
func (pt *PerformanceThread) InputMessage(s string) error {
	return pt.Submit(func(e Engine, _ *PerformanceThread) error {
		return e.EventString(s)
	})
}

// SetScoreOffsetSeconds seeks the score through the render loop.
func (pt *PerformanceThread) SetScoreOffsetSeconds(t float64) error {
	return pt.Submit(func(e Engine, _ *PerformanceThread) error {
		e.SetScoreOffsetSeconds(t)
		return nil
	})
}

// AddInput registers a source for the engine's input buffer. It takes
// effect from the next control period.
func (pt *PerformanceThread) AddInput(in AudioInput) error {
	return pt.Submit(func(Engine, *PerformanceThread) error {
		pt.inputs = append(pt.inputs, in)
		return nil
	})
}

// AddOutput registers a sink for the engine's output buffer.
func (pt *PerformanceThread) AddOutput(out AudioOutput) error {
	return pt.Submit(func(Engine, *PerformanceThread) error {
		pt.outputs = append(pt.outputs, out)
		return nil
	})
}

func (pt *PerformanceThread) run() {
	pt.logger.Info("performance thread started")
	code, err := pt.loop()
	pt.finish(code, err)
}

func (pt *PerformanceThread) loop() (ExitCode, error) {
	for {
		if pt.Status() == StatusStopped {
			return ExitStopped, nil
		}
		pt.drain()

		switch pt.Status() {
		case StatusStopped:
			return ExitStopped, nil
		case StatusPaused:
			if q := pt.Queue(); q != nil && q.Len() > 0 {
				continue
			}
			<-pt.wake
			continue
		}

		if fn := pt.processCallback(); fn != nil {
			if !pt.guard("process callback", func() { fn(pt.engine) }) {
				pt.mu.Lock()
				pt.process = nil
				pt.mu.Unlock()
			}
		}
		pt.pumpInputs()

		finished, err := pt.engine.PerformKsmps()
		if err != nil {
			code := ExitCode(Error)
			var ee *EngineError
			if errors.As(err, &ee) && ee.Code < 0 {
				code = ExitCode(ee.Code)
			}
			pt.logger.Error("render failed", "error", err)
			return code, err
		}

		pt.pumpOutputs()
		if finished {
			return ExitScoreEnd, nil
		}
	}
}

// drain runs up to maxTasks queued tasks, in order. It stops early once the
// thread is stopped; the remaining tasks are abandoned when the queue closes.
func (pt *PerformanceThread) drain() {
	q := pt.Queue()
	if q == nil {
		return
	}
	for i := 0; i < pt.maxTasks; i++ {
		if pt.Status() == StatusStopped {
			return
		}
		t, ok := q.tryPop()
		if !ok {
			return
		}
		pt.runTask(t)
	}
}

func (pt *PerformanceThread) runTask(t queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			err := &TaskPanicError{TaskID: t.id, Value: r}
			if t.cancel != nil {
				t.cancel(err)
			}
			pt.logTaskError(t.id, err)
		}
	}()
	if err := t.fn(pt.engine, pt); err != nil {
		pt.logTaskError(t.id, err)
	}
}

func (pt *PerformanceThread) logTaskError(id string, err error) {
	if !pt.errLimiter.Allow() {
		pt.suppressed++
		return
	}
	pt.logger.Warn("task failed", "task", id, "error", err, "suppressed", pt.suppressed)
	pt.suppressed = 0
}

// guard runs fn and reports false if it panicked. The panic is logged.
func (pt *PerformanceThread) guard(what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			pt.logger.Error("panic on render loop, detaching", "source", what, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

func (pt *PerformanceThread) pumpInputs() {
	if len(pt.inputs) == 0 {
		return
	}
	spin := pt.engine.Spin()
	clear(spin)
	nchnls := pt.engine.NchnlsInput()
	kept := pt.inputs[:0]
	for _, in := range pt.inputs {
		var err error
		if !pt.guard("input", func() { err = in.FillSpin(spin, nchnls) }) {
			continue
		}
		if err != nil {
			pt.logTaskError("input", err)
		}
		kept = append(kept, in)
	}
	clear(pt.inputs[len(kept):])
	pt.inputs = kept
}

func (pt *PerformanceThread) pumpOutputs() {
	if len(pt.outputs) == 0 && pt.recorder == nil {
		return
	}
	spout := pt.engine.Spout()
	nchnls := pt.engine.Nchnls()
	kept := pt.outputs[:0]
	for _, out := range pt.outputs {
		var err error
		if !pt.guard("output", func() { err = out.WriteSpout(spout, nchnls) }) {
			continue
		}
		if err != nil {
			pt.logTaskError("output", err)
		}
		kept = append(kept, out)
	}
	clear(pt.outputs[len(kept):])
	pt.outputs = kept
	if pt.recorder != nil {
		if err := pt.recorder.WriteSpout(spout, nchnls); err != nil {
			pt.logger.Error("recording failed", "path", pt.recorder.path, "error", err)
			pt.closeRecorder()
		}
	}
}

func (pt *PerformanceThread) finish(code ExitCode, err error) {
	pt.status.Store(int32(StatusStopped))
	pt.closeRecorder()

	pt.mu.Lock()
	pt.exited = true
	pt.exitCode = code
	pt.exitErr = err
	q := pt.queue
	pt.mu.Unlock()

	if q != nil {
		q.close(ErrThreadStopped)
	}

	threadsMu.Lock()
	if threads[pt.engine] == pt {
		delete(threads, pt.engine)
	}
	threadsMu.Unlock()

	pt.logger.Info("performance thread stopped", "exit", code.String())
	close(pt.done)
}
