package csound

import (
	"math"
	"unsafe"
)

// argv builds a NULL-terminated argument vector. The returned slices must be
// kept alive for the duration of the native call.
func argv(args []string) ([]*byte, [][]byte) {
	ptrs := make([]*byte, 0, len(args)+1)
	bufs := make([][]byte, 0, len(args))
	for _, a := range args {
		b := append([]byte(a), 0)
		bufs = append(bufs, b)
		ptrs = append(ptrs, &b[0])
	}
	ptrs = append(ptrs, nil)
	return ptrs, bufs
}

// Compile compiles input files and options given as command-line
// arguments, e.g. Compile("-odac", "song.csd"). The program name is
// supplied automatically.
func (c *Csound) Compile(args ...string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	ptrs, bufs := argv(append([]string{"csound"}, args...))
	rc := c.api.compile(c.cs, int32(len(ptrs)-1), &ptrs[0])
	keepAlive(bufs)
	return codeToError("compile", rc)
}

// CompileOrc compiles orchestra code, blocking until the new instruments
// are available.
func (c *Csound) CompileOrc(orc string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("compile orc", c.api.compileOrc(c.cs, orc, 0))
}

// CompileOrcAsync queues orchestra code for compilation at the start of the
// next control period.
func (c *Csound) CompileOrcAsync(orc string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("compile orc", c.api.compileOrc(c.cs, orc, 1))
}

// EvalCode compiles and runs code in instrument 0 and returns the value of
// its return statement.
func (c *Csound) EvalCode(code string) (float64, error) {
	if code == "" {
		return 0, ErrEmptyCode
	}
	if c.cs == 0 {
		return 0, ErrClosed
	}
	v := c.api.evalCode(c.cs, code)
	if math.IsNaN(v) {
		return 0, ErrEvalFailed
	}
	return v, nil
}

// CompileCsd compiles a .csd file.
func (c *Csound) CompileCsd(path string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("compile csd", c.api.compileCSD(c.cs, path, 0))
}

// CompileCsdText compiles a .csd document held in memory.
func (c *Csound) CompileCsdText(text string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("compile csd", c.api.compileCSD(c.cs, text, 1))
}

// Start prepares the engine for performance.
func (c *Csound) Start() error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("start", c.api.start(c.cs))
}

// PerformKsmps renders one control period. It returns true once the
// performance has finished.
func (c *Csound) PerformKsmps() (bool, error) {
	if c.cs == 0 {
		return true, ErrClosed
	}
	rc := c.api.performKsmps(c.cs)
	if c.msgBuffer {
		c.flushMessages()
	}
	switch {
	case rc < 0:
		return true, codeToError("perform", rc)
	case rc > 0:
		return true, nil
	}
	return false, nil
}

// RunUtility runs a utility program such as "sndinfo".
func (c *Csound) RunUtility(name string, args ...string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	ptrs, bufs := argv(append([]string{name}, args...))
	rc := c.api.runUtility(c.cs, name, int32(len(ptrs)-1), &ptrs[0])
	keepAlive(bufs)
	return codeToError("run utility "+name, rc)
}

// Reset returns the instance to its freshly created state.
func (c *Csound) Reset() {
	if c.cs != 0 {
		c.api.reset(c.cs)
	}
}

// Realtime I/O

// SetHostAudioIO disables the engine's own audio I/O so the host can move
// samples through Spin and Spout. Call before Start.
func (c *Csound) SetHostAudioIO() {
	if c.cs != 0 {
		c.api.setHostAudioIO(c.cs)
	}
}

// SetRTAudioModule selects the real-time audio module (e.g. "jack").
func (c *Csound) SetRTAudioModule(module string) {
	if c.cs != 0 {
		c.api.setRTAudioModule(c.cs, module)
	}
}

// SetHostMidiIO disables the engine's own MIDI I/O.
func (c *Csound) SetHostMidiIO() {
	if c.cs != 0 {
		c.api.setHostMIDIIO(c.cs)
	}
}

// SetMidiModule selects the MIDI module (e.g. "portmidi").
func (c *Csound) SetMidiModule(module string) {
	if c.cs != 0 {
		c.api.setMIDIModule(c.cs, module)
	}
}

// Spin returns the engine's input buffer: ksmps*NchnlsInput interleaved
// samples. The slice aliases native memory; it is only valid between
// render calls on the goroutine that drives the engine.
func (c *Csound) Spin() []float64 {
	if c.cs == 0 {
		return nil
	}
	p := c.api.getSpin(c.cs)
	if p == nil {
		return nil
	}
	return unsafe.Slice(p, c.Ksmps()*c.NchnlsInput())
}

// Spout returns the engine's output buffer: ksmps*Nchnls interleaved
// samples. Same aliasing rules as Spin.
func (c *Csound) Spout() []float64 {
	if c.cs == 0 {
		return nil
	}
	p := c.api.getSpout(c.cs)
	if p == nil {
		return nil
	}
	return unsafe.Slice(p, c.Ksmps()*c.Nchnls())
}
