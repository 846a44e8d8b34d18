package csound

// Engine is the part of an engine instance the render loop and tasks use.
// *Csound implements it; tasks that need more can type-assert to *Csound.
type Engine interface {
	// PerformKsmps renders one control period and reports whether the
	// performance has finished.
	PerformKsmps() (bool, error)

	EvalCode(code string) (float64, error)
	CompileOrc(orc string) error
	Event(kind EventKind, pfields ...float64) error
	EventString(s string) error

	SetControlChannel(name string, v float64)
	ControlChannel(name string) (float64, error)

	ScoreTime() float64
	SetScoreOffsetSeconds(t float64)

	// Spin and Spout return the engine's interleaved input and output
	// buffers for the current control period.
	Spin() []float64
	Spout() []float64

	Sr() float64
	Ksmps() int
	Nchnls() int
	NchnlsInput() int
	ZeroDBFS() float64
}

var _ Engine = (*Csound)(nil)
