package csound

import (
	"log/slog"
	"runtime"
	"strings"
	"sync"
)

// Csound is one engine instance.
type Csound struct {
	api    *api
	cs     uintptr
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	msgBuffer bool
	pending   strings.Builder

	midiIn  MidiInput
	midiOut MidiOutput
	graph   GraphDisplay
}

// Option configures a Csound instance.
type Option func(*options)

type options struct {
	library       *LibraryConfig
	opcodeDir     string
	logger        *slog.Logger
	messageBuffer bool
	echo          bool
}

// WithLibrary loads the native library with cfg if it has not been loaded.
func WithLibrary(cfg LibraryConfig) Option {
	return func(o *options) {
		o.library = &cfg
	}
}

// WithOpcodeDir overrides the plugin directory for this instance.
func WithOpcodeDir(dir string) Option {
	return func(o *options) {
		o.opcodeDir = dir
	}
}

// WithLogger sets the logger used for engine messages and render-loop
// diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMessageBuffer captures engine messages in a buffer. Complete lines are
// forwarded to the logger after every PerformKsmps; echo also prints them to
// the console.
func WithMessageBuffer(echo bool) Option {
	return func(o *options) {
		o.messageBuffer = true
		o.echo = echo
	}
}

// New creates an engine instance, loading the native library on first use.
func New(opts ...Option) (*Csound, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		a   *api
		err error
	)
	if o.library != nil {
		if err = Load(*o.library); err != nil && err != ErrAlreadyLoaded {
			return nil, err
		}
		a, err = loaded()
	} else {
		a, err = ensureLoaded()
	}
	if err != nil {
		return nil, err
	}

	dir := cString(o.opcodeDir)
	handle := a.create(nil, dir)
	keepAlive(dir)
	if handle == 0 {
		return nil, ErrCreate
	}

	c := &Csound{
		api:    a,
		cs:     handle,
		logger: o.logger,
	}
	if o.messageBuffer {
		c.CreateMessageBuffer(o.echo)
	}
	runtime.SetFinalizer(c, (*Csound).Close)
	return c, nil
}

// Close releases the engine instance.
//
// Close refuses with ErrThreadRunning while a performance thread is still
// bound to the instance; stop and join it first. Closing twice is a no-op.
// Once closed, methods return zero values or ErrClosed.
//
// A finalizer closes unreachable instances, but an instance with MIDI
// backends or a graph display is held by the callback registry and is only
// released by Close.
func (c *Csound) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if pt := boundThread(c); pt != nil {
		return ErrThreadRunning
	}

	if c.msgBuffer {
		c.api.destroyMessageBuffer(c.cs)
		c.msgBuffer = false
	}
	unregister(c.cs)
	c.api.destroy(c.cs)
	c.cs = 0
	c.closed = true
	runtime.SetFinalizer(c, nil)
	return nil
}

// Handle returns the address of the native CSOUND struct, or 0 once the
// instance is closed.
func (c *Csound) Handle() uintptr {
	return c.cs
}

// Logger returns the instance logger.
func (c *Csound) Logger() *slog.Logger {
	return c.logger
}

// Attributes. A closed instance reports zero values.

func (c *Csound) Sr() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getSr(c.cs)
}

func (c *Csound) Kr() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getKr(c.cs)
}

func (c *Csound) Ksmps() int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getKsmps(c.cs))
}

func (c *Csound) Nchnls() int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getChannels(c.cs, 0))
}

func (c *Csound) NchnlsInput() int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getChannels(c.cs, 1))
}

// ZeroDBFS returns the amplitude of full scale (0dbfs).
func (c *Csound) ZeroDBFS() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.get0dBFS(c.cs)
}

// A4 returns the reference pitch.
func (c *Csound) A4() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getA4(c.cs)
}

// CurrentTimeSamples returns the performance position in sample frames.
func (c *Csound) CurrentTimeSamples() int64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getCurrentTimeSamples(c.cs)
}

// SizeOfMYFLT returns the size of the engine's floating point type.
func (c *Csound) SizeOfMYFLT() int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getSizeOfMYFLT())
}

// Env returns the value of an environment variable as seen by the engine.
func (c *Csound) Env(name string) string {
	if c.cs == 0 {
		return ""
	}
	return goString(c.api.getEnv(c.cs, name))
}

// SetOption parses one command-line style option (e.g. "-odac").
func (c *Csound) SetOption(option string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("set option "+option, c.api.setOption(c.cs, option))
}

// SetOptions applies options in order, stopping at the first failure.
func (c *Csound) SetOptions(options ...string) error {
	for _, opt := range options {
		if err := c.SetOption(opt); err != nil {
			return err
		}
	}
	return nil
}

// Debug reports whether debug mode is on.
func (c *Csound) Debug() bool {
	if c.cs == 0 {
		return false
	}
	return c.api.getDebug(c.cs) != 0
}

// SetDebug toggles debug mode.
func (c *Csound) SetDebug(debug bool) {
	if c.cs != 0 {
		c.api.setDebug(c.cs, boolToInt32(debug))
	}
}

// SystemSr stores val as the hardware sample rate when positive, and returns
// the stored value.
func (c *Csound) SystemSr(val float64) float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.systemSr(c.cs, val)
}

// MessageLevel returns the message printout level (0..231).
func (c *Csound) MessageLevel() int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getMessageLevel(c.cs))
}

// SetMessageLevel sets the message printout level.
func (c *Csound) SetMessageLevel(level int) {
	if c.cs != 0 {
		c.api.setMessageLevel(c.cs, int32(level))
	}
}

// Module describes a loaded audio or MIDI module.
type Module struct {
	Name string
	Kind string
}

// Module returns the n-th loaded module. The second result is false when n
// is out of range.
func (c *Csound) Module(n int) (Module, bool) {
	if c.cs == 0 {
		return Module{}, false
	}
	var name, kind *byte
	if rc := c.api.getModule(c.cs, int32(n), &name, &kind); rc == Error {
		return Module{}, false
	}
	return Module{Name: goString(name), Kind: goString(kind)}, true
}

// Modules lists every loaded module.
func (c *Csound) Modules() []Module {
	var mods []Module
	for n := 0; ; n++ {
		m, ok := c.Module(n)
		if !ok {
			return mods
		}
		mods = append(mods, m)
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Callback registry: native callbacks are created once per process and find
// their instance through the CSOUND pointer they receive.

var (
	registryMu sync.RWMutex
	registry   = make(map[uintptr]*Csound)
)

func register(c *Csound) {
	registryMu.Lock()
	registry[c.cs] = c
	registryMu.Unlock()
}

func unregister(cs uintptr) {
	registryMu.Lock()
	delete(registry, cs)
	registryMu.Unlock()
}

func lookup(cs uintptr) *Csound {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[cs]
}
