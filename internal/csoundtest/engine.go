// Package csoundtest provides a scripted stand-in for a native engine so the
// render loop can be tested without libcsound.
package csoundtest

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	csound "github.com/aspect-build/csound-go"
)

// ErrEval is returned by EvalCode for code the fake cannot evaluate.
var ErrEval = errors.New("csoundtest: cannot evaluate")

// Event records one score event received by the fake.
type Event struct {
	Kind    csound.EventKind
	PFields []float64
	Line    string
}

// Engine implements csound.Engine. Every render produces a ramp on each
// output channel so outputs can be checked.
type Engine struct {
	mu sync.Mutex

	sr       float64
	ksmps    int
	nchnls   int
	nchnlsIn int
	zeroDBFS float64

	// FinishAfter ends the performance after that many control periods
	// (0 renders forever).
	FinishAfter int
	// FailAfter makes the control period with that number fail with FailErr.
	FailAfter int
	FailErr   error
	// CycleDelay is slept in every PerformKsmps.
	CycleDelay time.Duration

	cycles      int
	scoreTime   float64
	scoreOffset float64
	channels    map[string]float64
	events      []Event
	orcs        []string
	spin        []float64
	spout       []float64
	lastSpin    []float64
	keys        []byte
}

// Option configures the fake.
type Option func(*Engine)

// WithFormat sets sample rate, ksmps and channel counts.
func WithFormat(sr float64, ksmps, nchnls, nchnlsIn int) Option {
	return func(e *Engine) {
		e.sr, e.ksmps, e.nchnls, e.nchnlsIn = sr, ksmps, nchnls, nchnlsIn
	}
}

// WithZeroDBFS sets the full-scale amplitude.
func WithZeroDBFS(v float64) Option {
	return func(e *Engine) { e.zeroDBFS = v }
}

// New creates a fake engine: 48 kHz, ksmps 16, stereo out, mono in.
func New(opts ...Option) *Engine {
	e := &Engine{
		sr:       48000,
		ksmps:    16,
		nchnls:   2,
		nchnlsIn: 1,
		zeroDBFS: 1,
		channels: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.spin = make([]float64, e.ksmps*e.nchnlsIn)
	e.spout = make([]float64, e.ksmps*e.nchnls)
	return e
}

func (e *Engine) PerformKsmps() (bool, error) {
	if e.CycleDelay > 0 {
		time.Sleep(e.CycleDelay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycles++
	if e.FailAfter > 0 && e.cycles >= e.FailAfter {
		err := e.FailErr
		if err == nil {
			err = &csound.EngineError{Op: "perform", Code: csound.Performance}
		}
		return true, err
	}
	e.lastSpin = append(e.lastSpin[:0], e.spin...)
	for f := 0; f < e.ksmps; f++ {
		for ch := 0; ch < e.nchnls; ch++ {
			e.spout[f*e.nchnls+ch] = float64(f) / float64(e.ksmps) * e.zeroDBFS
		}
	}
	e.scoreTime += float64(e.ksmps) / e.sr
	return e.FinishAfter > 0 && e.cycles >= e.FinishAfter, nil
}

// EvalCode understands "return <n>" and "return <n>+<m>+...".
func (e *Engine) EvalCode(code string) (float64, error) {
	if code == "" {
		return 0, csound.ErrEmptyCode
	}
	expr, ok := strings.CutPrefix(strings.TrimSpace(code), "return")
	if !ok {
		return 0, ErrEval
	}
	sum := 0.0
	for _, term := range strings.Split(expr, "+") {
		v, err := strconv.ParseFloat(strings.TrimSpace(term), 64)
		if err != nil {
			return 0, ErrEval
		}
		sum += v
	}
	return sum, nil
}

func (e *Engine) CompileOrc(orc string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orcs = append(e.orcs, orc)
	return nil
}

func (e *Engine) Event(kind csound.EventKind, pfields ...float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Kind: kind, PFields: append([]float64(nil), pfields...)})
	return nil
}

func (e *Engine) EventString(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Line: s})
	return nil
}

func (e *Engine) SetControlChannel(name string, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[name] = v
}

func (e *Engine) ControlChannel(name string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.channels[name]
	if !ok {
		return 0, csound.ErrChannelNotFound
	}
	return v, nil
}

func (e *Engine) ScoreTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scoreTime
}

func (e *Engine) SetScoreOffsetSeconds(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scoreOffset = t
	e.scoreTime = t
}

func (e *Engine) Spin() []float64  { return e.spin }
func (e *Engine) Spout() []float64 { return e.spout }

func (e *Engine) Sr() float64       { return e.sr }
func (e *Engine) Ksmps() int        { return e.ksmps }
func (e *Engine) Nchnls() int       { return e.nchnls }
func (e *Engine) NchnlsInput() int  { return e.nchnlsIn }
func (e *Engine) ZeroDBFS() float64 { return e.zeroDBFS }

// KeyPress records a key event.
func (e *Engine) KeyPress(b byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, b)
}

// Keys returns the key events received so far.
func (e *Engine) Keys() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.keys...)
}

// Cycles returns the number of control periods rendered.
func (e *Engine) Cycles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycles
}

// Events returns the events received so far.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

// Orcs returns the orchestra code compiled so far.
func (e *Engine) Orcs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.orcs...)
}

// ScoreOffset returns the last offset set with SetScoreOffsetSeconds.
func (e *Engine) ScoreOffset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scoreOffset
}

// LastSpin returns the input buffer as it was at the last render.
func (e *Engine) LastSpin() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.lastSpin...)
}
