package csound

// nativeParams mirrors CSOUND_PARAMS.
type nativeParams struct {
	debugMode            int32
	bufferFrames         int32
	hardwareBufferFrames int32
	displays             int32
	asciiGraphs          int32
	postscriptGraphs     int32
	messageLevel         int32
	tempo                int32
	ringBell             int32
	useCscore            int32
	terminateOnMidi      int32
	heartbeat            int32
	deferGen01Load       int32
	midiKey              int32
	midiKeyCps           int32
	midiKeyOct           int32
	midiKeyPch           int32
	midiVelocity         int32
	midiVelocityAmp      int32
	noDefaultPaths       int32
	numberOfThreads      int32
	syntaxCheckOnly      int32
	csdLineCounts        int32
	computeWeights       int32
	realtimeMode         int32
	sampleAccurate       int32
	sampleRateOverride   float64
	controlRateOverride  float64
	nchnlsOverride       int32
	nchnlsIOverride      int32
	e0dbfsOverride       float64
	daemon               int32
	ksmpsOverride        int32
	fftLibrary           int32
}

// Params is a snapshot of the engine's configuration.
type Params struct {
	DebugMode            bool
	BufferFrames         int
	HardwareBufferFrames int
	Displays             bool
	ASCIIGraphs          bool
	PostscriptGraphs     bool
	MessageLevel         int
	Tempo                int
	RingBell             bool
	UseCscore            bool
	TerminateOnMidi      bool
	Heartbeat            int
	DeferGen01Load       bool
	MidiKey              int
	MidiKeyCps           int
	MidiKeyOct           int
	MidiKeyPch           int
	MidiVelocity         int
	MidiVelocityAmp      int
	NoDefaultPaths       bool
	NumberOfThreads      int
	SyntaxCheckOnly      bool
	CsdLineCounts        bool
	RealtimeMode         bool
	SampleAccurate       bool
	SampleRateOverride   float64
	ControlRateOverride  float64
	NchnlsOverride       int
	NchnlsInputOverride  int
	ZeroDBFSOverride     float64
	Daemon               bool
	KsmpsOverride        int
	FFTLibrary           int
}

// Params returns the current engine configuration.
func (c *Csound) Params() Params {
	var p nativeParams
	if c.cs == 0 {
		return Params{}
	}
	c.api.getParams(c.cs, &p)
	return p.toParams()
}

func (p *nativeParams) toParams() Params {
	return Params{
		DebugMode:            p.debugMode != 0,
		BufferFrames:         int(p.bufferFrames),
		HardwareBufferFrames: int(p.hardwareBufferFrames),
		Displays:             p.displays != 0,
		ASCIIGraphs:          p.asciiGraphs != 0,
		PostscriptGraphs:     p.postscriptGraphs != 0,
		MessageLevel:         int(p.messageLevel),
		Tempo:                int(p.tempo),
		RingBell:             p.ringBell != 0,
		UseCscore:            p.useCscore != 0,
		TerminateOnMidi:      p.terminateOnMidi != 0,
		Heartbeat:            int(p.heartbeat),
		DeferGen01Load:       p.deferGen01Load != 0,
		MidiKey:              int(p.midiKey),
		MidiKeyCps:           int(p.midiKeyCps),
		MidiKeyOct:           int(p.midiKeyOct),
		MidiKeyPch:           int(p.midiKeyPch),
		MidiVelocity:         int(p.midiVelocity),
		MidiVelocityAmp:      int(p.midiVelocityAmp),
		NoDefaultPaths:       p.noDefaultPaths != 0,
		NumberOfThreads:      int(p.numberOfThreads),
		SyntaxCheckOnly:      p.syntaxCheckOnly != 0,
		CsdLineCounts:        p.csdLineCounts != 0,
		RealtimeMode:         p.realtimeMode != 0,
		SampleAccurate:       p.sampleAccurate != 0,
		SampleRateOverride:   p.sampleRateOverride,
		ControlRateOverride:  p.controlRateOverride,
		NchnlsOverride:       int(p.nchnlsOverride),
		NchnlsInputOverride:  int(p.nchnlsIOverride),
		ZeroDBFSOverride:     p.e0dbfsOverride,
		Daemon:               p.daemon != 0,
		KsmpsOverride:        int(p.ksmpsOverride),
		FFTLibrary:           int(p.fftLibrary),
	}
}
