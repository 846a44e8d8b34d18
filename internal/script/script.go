// Package script runs Lua control scripts against a running performance.
//
// Scripts never touch the engine directly: every call is queued on the
// performance thread and, where a value is returned, waited for.
//
//	event("i", 1, 0, 2, 440)
//	set_channel("amp", 0.3)
//	sleep(1.5)
//	log("cutoff is", channel("cutoff"))
//	stop()
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	csound "github.com/aspect-build/csound-go"
)

// Runtime is a Lua interpreter bound to one performance thread. It is not
// safe for concurrent use.
type Runtime struct {
	pt      *csound.PerformanceThread
	L       *lua.LState
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the Lua log function.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds every wait on the render loop.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a runtime with the base, table, string and math libraries and
// the engine functions installed as globals.
func New(pt *csound.PerformanceThread, opts ...Option) *Runtime {
	r := &Runtime{
		pt:      pt,
		L:       lua.NewState(lua.Options{SkipOpenLibs: true}),
		logger:  slog.Default(),
		timeout: csound.DefaultTimeout,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("source", "script")

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		r.L.Push(r.L.NewFunction(lib.fn))
		r.L.Push(lua.LString(lib.name))
		r.L.Call(1, 0)
	}

	for name, fn := range map[string]lua.LGFunction{
		"event":        r.event(false),
		"event_abs":    r.event(true),
		"event_string": r.eventString,
		"set_channel":  r.setChannel,
		"channel":      r.channel,
		"eval":         r.eval,
		"compile":      r.compile,
		"score_time":   r.scoreTime,
		"sync":         r.sync,
		"sleep":        r.sleep,
		"play":         r.control((*csound.PerformanceThread).Play),
		"pause":        r.control((*csound.PerformanceThread).Pause),
		"stop":         r.control((*csound.PerformanceThread).Stop),
		"status":       r.status,
		"log":          r.log,
	} {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
	return r
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.L.Close()
}

// RunString executes src. Cancelling ctx aborts the script.
func (r *Runtime) RunString(ctx context.Context, src string) error {
	return r.run(ctx, func() error { return r.L.DoString(src) })
}

// RunFile executes the script at path.
func (r *Runtime) RunFile(ctx context.Context, path string) error {
	return r.run(ctx, func() error { return r.L.DoFile(path) })
}

func (r *Runtime) run(ctx context.Context, do func() error) error {
	r.ctx = ctx
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()
	if err := do(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// query runs fn on the render loop and waits for its value.
func (r *Runtime) query(fn func(csound.Engine) (float64, error)) (float64, error) {
	type result struct {
		v   float64
		err error
	}
	res := make(chan result, 1)
	err := r.pt.Submit(func(e csound.Engine, _ *csound.PerformanceThread) error {
		v, err := fn(e)
		res <- result{v, err}
		return nil
	})
	if err != nil {
		return 0, err
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case got := <-res:
		return got.v, got.err
	case <-r.pt.Done():
		select {
		case got := <-res:
			return got.v, got.err
		default:
			return 0, csound.ErrThreadStopped
		}
	case <-timer.C:
		return 0, csound.ErrTimeout
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	}
}

func (r *Runtime) check(err error) {
	if err != nil {
		r.L.RaiseError("%s", err.Error())
	}
}

func (r *Runtime) event(absolute bool) lua.LGFunction {
	return func(L *lua.LState) int {
		letter := L.CheckString(1)
		if len(letter) != 1 {
			L.ArgError(1, "event type must be one of i, f, e")
		}
		kind, err := csound.ParseEventKind(rune(letter[0]))
		if err != nil {
			L.ArgError(1, err.Error())
		}
		pfields := make([]float64, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			pfields = append(pfields, float64(L.CheckNumber(i)))
		}
		r.check(r.pt.ScoreEvent(absolute, kind, pfields...))
		return 0
	}
}

func (r *Runtime) eventString(L *lua.LState) int {
	r.check(r.pt.InputMessage(L.CheckString(1)))
	return 0
}

func (r *Runtime) setChannel(L *lua.LState) int {
	name := L.CheckString(1)
	v := float64(L.CheckNumber(2))
	r.check(r.pt.Submit(func(e csound.Engine, _ *csound.PerformanceThread) error {
		e.SetControlChannel(name, v)
		return nil
	}))
	return 0
}

func (r *Runtime) channel(L *lua.LState) int {
	name := L.CheckString(1)
	v, err := r.query(func(e csound.Engine) (float64, error) {
		return e.ControlChannel(name)
	})
	r.check(err)
	L.Push(lua.LNumber(v))
	return 1
}

func (r *Runtime) eval(L *lua.LState) int {
	v, err := r.pt.EvalCode(L.CheckString(1), r.timeout)
	r.check(err)
	L.Push(lua.LNumber(v))
	return 1
}

func (r *Runtime) compile(L *lua.LState) int {
	orc := L.CheckString(1)
	_, err := r.query(func(e csound.Engine) (float64, error) {
		return 0, e.CompileOrc(orc)
	})
	r.check(err)
	return 0
}

func (r *Runtime) scoreTime(L *lua.LState) int {
	v, err := r.query(func(e csound.Engine) (float64, error) {
		return e.ScoreTime(), nil
	})
	r.check(err)
	L.Push(lua.LNumber(v))
	return 1
}

func (r *Runtime) sync(L *lua.LState) int {
	r.check(r.pt.Sync(r.timeout))
	return 0
}

func (r *Runtime) sleep(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.pt.Done():
	case <-r.ctx.Done():
		r.check(r.ctx.Err())
	}
	return 0
}

func (r *Runtime) control(fn func(*csound.PerformanceThread)) lua.LGFunction {
	return func(L *lua.LState) int {
		fn(r.pt)
		return 0
	}
}

func (r *Runtime) status(L *lua.LState) int {
	L.Push(lua.LString(r.pt.Status().String()))
	return 1
}

func (r *Runtime) log(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.logger.Info(strings.Join(parts, " "))
	return 0
}

// IsStopped reports whether err came from a script call made after the
// performance ended. Lua errors carry only the message, so the check is
// textual.
func IsStopped(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, csound.ErrThreadStopped) || errors.Is(err, csound.ErrQueueClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, csound.ErrThreadStopped.Error()) ||
		strings.Contains(msg, csound.ErrQueueClosed.Error())
}
