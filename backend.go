package csound

// AudioInput feeds the engine's input buffer when the host implements audio
// I/O. FillSpin is called on the render loop before every control period
// with ksmps*nchnls interleaved samples to fill.
type AudioInput interface {
	FillSpin(buf []float64, nchnls int) error
}

// AudioOutput consumes the engine's output buffer. WriteSpout is called on
// the render loop after every control period; buf must not be retained.
type AudioOutput interface {
	WriteSpout(buf []float64, nchnls int) error
}

// MidiInput is a host MIDI input device.
type MidiInput interface {
	OpenMidiIn(device string) error
	// ReadMidi fills buf with raw MIDI bytes and returns the count, which
	// may be zero.
	ReadMidi(buf []byte) (int, error)
	CloseMidiIn() error
}

// MidiOutput is a host MIDI output device.
type MidiOutput interface {
	OpenMidiOut(device string) error
	WriteMidi(msg []byte) (int, error)
	CloseMidiOut() error
}

// GraphDisplay receives the engine's table and signal displays.
type GraphDisplay interface {
	MakeGraph(g *Graph, name string)
	DrawGraph(g *Graph)
	KillGraph(g *Graph)
	ExitGraph() error
}
