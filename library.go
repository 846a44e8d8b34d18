package csound

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Flags for Initialize.
const (
	InitNoSignalHandler = 1
	InitNoAtExit        = 2
)

// LibraryConfig is the process-wide configuration of the native library.
//
// It is applied once, by the first call to Load (or implicitly by the first
// New). Path defaults to DefaultLibraryName(); an empty OpcodeDir keeps the
// engine's built-in plugin search path.
type LibraryConfig struct {
	Path      string
	OpcodeDir string
	InitFlags int
}

// DefaultLibraryName returns the platform's libcsound file name.
func DefaultLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "CsoundLib64.framework/CsoundLib64"
	case "windows":
		return "csound64.dll"
	default:
		return "libcsound64.so"
	}
}

// DefaultRealtimeModule returns the real-time audio module a platform
// normally ships with.
func DefaultRealtimeModule() string {
	switch runtime.GOOS {
	case "linux":
		return "jack"
	case "darwin":
		return "auhal"
	default:
		return "pa_cb"
	}
}

var (
	libMu  sync.Mutex
	libCfg LibraryConfig
	lib    *api
)

// Load opens the native library and resolves every bound symbol.
//
// Load is idempotent for an identical configuration. A second call with a
// different configuration returns ErrAlreadyLoaded: there is only one engine
// library per process.
func Load(cfg LibraryConfig) error {
	if cfg.Path == "" {
		cfg.Path = DefaultLibraryName()
	}

	libMu.Lock()
	defer libMu.Unlock()

	if lib != nil {
		if cfg != libCfg {
			return ErrAlreadyLoaded
		}
		return nil
	}

	handle, err := openLibrary(cfg.Path)
	if err != nil {
		return fmt.Errorf("csound: open %s: %w", cfg.Path, err)
	}
	a := &api{handle: handle, path: cfg.Path}
	if err := a.bind(); err != nil {
		return err
	}

	if cfg.InitFlags != 0 {
		if rc := a.initialize(int32(cfg.InitFlags)); rc < 0 {
			return codeToError("initialize", rc)
		}
	}
	if cfg.OpcodeDir != "" {
		dir := cString(cfg.OpcodeDir)
		a.setOpcodedir(dir)
		keepAlive(dir)
	}

	lib = a
	libCfg = cfg
	return nil
}

// LibraryPath returns the path the library was loaded from, or "" when it
// has not been loaded.
func LibraryPath() string {
	libMu.Lock()
	defer libMu.Unlock()
	if lib == nil {
		return ""
	}
	return lib.path
}

func loaded() (*api, error) {
	libMu.Lock()
	defer libMu.Unlock()
	if lib == nil {
		return nil, ErrLibraryNotLoaded
	}
	return lib, nil
}

// ensureLoaded loads the library with the default configuration unless it
// has already been loaded.
func ensureLoaded() (*api, error) {
	if a, err := loaded(); err == nil {
		return a, nil
	}
	if err := Load(LibraryConfig{}); err != nil && err != ErrAlreadyLoaded {
		return nil, err
	}
	return loaded()
}

// api holds every native entry point used by this package.
type api struct {
	handle uintptr
	path   string

	// Instantiation
	initialize     func(flags int32) int32
	setOpcodedir   func(path *byte)
	create         func(hostData unsafe.Pointer, opcodeDir *byte) uintptr
	destroy        func(cs uintptr)
	getVersion     func() int32
	setGlobalEnv   func(name, value *byte) int32
	getSizeOfMYFLT func() int32

	// Attributes
	getSr                 func(cs uintptr) float64
	getKr                 func(cs uintptr) float64
	getKsmps              func(cs uintptr) uint32
	getChannels           func(cs uintptr, isInput int32) uint32
	get0dBFS              func(cs uintptr) float64
	getA4                 func(cs uintptr) float64
	getCurrentTimeSamples func(cs uintptr) int64
	getEnv                func(cs uintptr, name string) *byte
	setOption             func(cs uintptr, option string) int32
	getParams             func(cs uintptr, p *nativeParams)
	getDebug              func(cs uintptr) int32
	setDebug              func(cs uintptr, debug int32)
	systemSr              func(cs uintptr, val float64) float64
	getModule             func(cs uintptr, n int32, name, kind **byte) int32
	getAudioDevList       func(cs uintptr, list unsafe.Pointer, isOutput int32) int32
	getMIDIDevList        func(cs uintptr, list unsafe.Pointer, isOutput int32) int32
	getMessageLevel       func(cs uintptr) int32
	setMessageLevel       func(cs uintptr, level int32)

	// Performance
	compile      func(cs uintptr, argc int32, argv **byte) int32
	compileOrc   func(cs uintptr, orc string, async int32) int32
	evalCode     func(cs uintptr, code string) float64
	compileCSD   func(cs uintptr, csd string, mode int32) int32
	start        func(cs uintptr) int32
	performKsmps func(cs uintptr) int32
	runUtility   func(cs uintptr, name string, argc int32, argv **byte) int32
	reset        func(cs uintptr)

	// Realtime I/O
	setHostAudioIO    func(cs uintptr)
	setRTAudioModule  func(cs uintptr, module string)
	getSpin           func(cs uintptr) *float64
	getSpout          func(cs uintptr) *float64
	setHostMIDIIO     func(cs uintptr)
	setMIDIModule     func(cs uintptr, module string)
	setMidiInOpenCB   func(cs uintptr, fn uintptr)
	setMidiReadCB     func(cs uintptr, fn uintptr)
	setMidiInCloseCB  func(cs uintptr, fn uintptr)
	setMidiOutOpenCB  func(cs uintptr, fn uintptr)
	setMidiWriteCB    func(cs uintptr, fn uintptr)
	setMidiOutCloseCB func(cs uintptr, fn uintptr)

	// Messages
	messageS             func(cs uintptr, attr int32, format, arg *byte)
	createMessageBuffer  func(cs uintptr, echo int32)
	getFirstMessage      func(cs uintptr) *byte
	getFirstMessageAttr  func(cs uintptr) int32
	popFirstMessage      func(cs uintptr)
	getMessageCnt        func(cs uintptr) int32
	destroyMessageBuffer func(cs uintptr)

	// Channels
	getChannelPtr          func(cs uintptr, p *unsafe.Pointer, name string, kind int32) int32
	getChannelVarTypeName  func(cs uintptr, name string) *byte
	listChannels           func(cs uintptr, lst **nativeChannelInfo) int32
	deleteChannelList      func(cs uintptr, lst *nativeChannelInfo)
	getControlChannelHints func(cs uintptr, name string, hints *nativeHints) int32
	lockChannel            func(cs uintptr, name string)
	unlockChannel          func(cs uintptr, name string)
	getControlChannel      func(cs uintptr, name string, err *int32) float64
	setControlChannel      func(cs uintptr, name string, val float64)
	getAudioChannel        func(cs uintptr, name string, samples *float64)
	setAudioChannel        func(cs uintptr, name string, samples *float64)
	getStringChannel       func(cs uintptr, name string, out *byte)
	setStringChannel       func(cs uintptr, name string, value string)
	getChannelDatasize     func(cs uintptr, name string) int32

	// Events
	event       func(cs uintptr, kind int32, pfields *float64, n int32, async int32)
	eventString func(cs uintptr, msg string, async int32)
	keyPress    func(cs uintptr, c byte)

	// Tables
	tableLength  func(cs uintptr, table int32) int32
	getTable     func(cs uintptr, p **float64, table int32) int32
	getTableArgs func(cs uintptr, p **float64, table int32) int32

	// Score
	getScoreTime          func(cs uintptr) float64
	isScorePending        func(cs uintptr) int32
	setScorePending       func(cs uintptr, pending int32)
	getScoreOffsetSeconds func(cs uintptr) float64
	setScoreOffsetSeconds func(cs uintptr, t float64)
	rewindScore           func(cs uintptr)
	sleep                 func(ms uintptr)

	// Opcodes
	loadPlugins func(cs uintptr, dir string) int32

	// Graphs
	setIsGraphable func(cs uintptr, graphable int32) int32
	setMakeGraphCB func(cs uintptr, fn uintptr)
	setDrawGraphCB func(cs uintptr, fn uintptr)
	setKillGraphCB func(cs uintptr, fn uintptr)
	setExitGraphCB func(cs uintptr, fn uintptr)

	// Circular buffers
	createCircularBuffer  func(cs uintptr, numelem, elemsize int32) unsafe.Pointer
	readCircularBuffer    func(cs uintptr, p unsafe.Pointer, out unsafe.Pointer, items int32) int32
	peekCircularBuffer    func(cs uintptr, p unsafe.Pointer, out unsafe.Pointer, items int32) int32
	writeCircularBuffer   func(cs uintptr, p unsafe.Pointer, in unsafe.Pointer, items int32) int32
	flushCircularBuffer   func(cs uintptr, p unsafe.Pointer)
	destroyCircularBuffer func(cs uintptr, p unsafe.Pointer)
}

func (a *api) bind() error {
	symbols := []struct {
		fptr any
		name string
	}{
		{&a.initialize, "csoundInitialize"},
		{&a.setOpcodedir, "csoundSetOpcodedir"},
		{&a.create, "csoundCreate"},
		{&a.destroy, "csoundDestroy"},
		{&a.getVersion, "csoundGetVersion"},
		{&a.setGlobalEnv, "csoundSetGlobalEnv"},
		{&a.getSizeOfMYFLT, "csoundGetSizeOfMYFLT"},

		{&a.getSr, "csoundGetSr"},
		{&a.getKr, "csoundGetKr"},
		{&a.getKsmps, "csoundGetKsmps"},
		{&a.getChannels, "csoundGetChannels"},
		{&a.get0dBFS, "csoundGet0dBFS"},
		{&a.getA4, "csoundGetA4"},
		{&a.getCurrentTimeSamples, "csoundGetCurrentTimeSamples"},
		{&a.getEnv, "csoundGetEnv"},
		{&a.setOption, "csoundSetOption"},
		{&a.getParams, "csoundGetParams"},
		{&a.getDebug, "csoundGetDebug"},
		{&a.setDebug, "csoundSetDebug"},
		{&a.systemSr, "csoundSystemSr"},
		{&a.getModule, "csoundGetModule"},
		{&a.getAudioDevList, "csoundGetAudioDevList"},
		{&a.getMIDIDevList, "csoundGetMIDIDevList"},
		{&a.getMessageLevel, "csoundGetMessageLevel"},
		{&a.setMessageLevel, "csoundSetMessageLevel"},

		{&a.compile, "csoundCompile"},
		{&a.compileOrc, "csoundCompileOrc"},
		{&a.evalCode, "csoundEvalCode"},
		{&a.compileCSD, "csoundCompileCSD"},
		{&a.start, "csoundStart"},
		{&a.performKsmps, "csoundPerformKsmps"},
		{&a.runUtility, "csoundRunUtility"},
		{&a.reset, "csoundReset"},

		{&a.setHostAudioIO, "csoundSetHostAudioIO"},
		{&a.setRTAudioModule, "csoundSetRTAudioModule"},
		{&a.getSpin, "csoundGetSpin"},
		{&a.getSpout, "csoundGetSpout"},
		{&a.setHostMIDIIO, "csoundSetHostMIDIIO"},
		{&a.setMIDIModule, "csoundSetMIDIModule"},
		{&a.setMidiInOpenCB, "csoundSetExternalMidiInOpenCallback"},
		{&a.setMidiReadCB, "csoundSetExternalMidiReadCallback"},
		{&a.setMidiInCloseCB, "csoundSetExternalMidiInCloseCallback"},
		{&a.setMidiOutOpenCB, "csoundSetExternalMidiOutOpenCallback"},
		{&a.setMidiWriteCB, "csoundSetExternalMidiWriteCallback"},
		{&a.setMidiOutCloseCB, "csoundSetExternalMidiOutCloseCallback"},

		{&a.messageS, "csoundMessageS"},
		{&a.createMessageBuffer, "csoundCreateMessageBuffer"},
		{&a.getFirstMessage, "csoundGetFirstMessage"},
		{&a.getFirstMessageAttr, "csoundGetFirstMessageAttr"},
		{&a.popFirstMessage, "csoundPopFirstMessage"},
		{&a.getMessageCnt, "csoundGetMessageCnt"},
		{&a.destroyMessageBuffer, "csoundDestroyMessageBuffer"},

		{&a.getChannelPtr, "csoundGetChannelPtr"},
		{&a.getChannelVarTypeName, "csoundGetChannelVarTypeName"},
		{&a.listChannels, "csoundListChannels"},
		{&a.deleteChannelList, "csoundDeleteChannelList"},
		{&a.getControlChannelHints, "csoundGetControlChannelHints"},
		{&a.lockChannel, "csoundLockChannel"},
		{&a.unlockChannel, "csoundUnlockChannel"},
		{&a.getControlChannel, "csoundGetControlChannel"},
		{&a.setControlChannel, "csoundSetControlChannel"},
		{&a.getAudioChannel, "csoundGetAudioChannel"},
		{&a.setAudioChannel, "csoundSetAudioChannel"},
		{&a.getStringChannel, "csoundGetStringChannel"},
		{&a.setStringChannel, "csoundSetStringChannel"},
		{&a.getChannelDatasize, "csoundGetChannelDatasize"},

		{&a.event, "csoundEvent"},
		{&a.eventString, "csoundEventString"},
		{&a.keyPress, "csoundKeyPress"},

		{&a.tableLength, "csoundTableLength"},
		{&a.getTable, "csoundGetTable"},
		{&a.getTableArgs, "csoundGetTableArgs"},

		{&a.getScoreTime, "csoundGetScoreTime"},
		{&a.isScorePending, "csoundIsScorePending"},
		{&a.setScorePending, "csoundSetScorePending"},
		{&a.getScoreOffsetSeconds, "csoundGetScoreOffsetSeconds"},
		{&a.setScoreOffsetSeconds, "csoundSetScoreOffsetSeconds"},
		{&a.rewindScore, "csoundRewindScore"},
		{&a.sleep, "csoundSleep"},

		{&a.loadPlugins, "csoundLoadPlugins"},

		{&a.setIsGraphable, "csoundSetIsGraphable"},
		{&a.setMakeGraphCB, "csoundSetMakeGraphCallback"},
		{&a.setDrawGraphCB, "csoundSetDrawGraphCallback"},
		{&a.setKillGraphCB, "csoundSetKillGraphCallback"},
		{&a.setExitGraphCB, "csoundSetExitGraphCallback"},

		{&a.createCircularBuffer, "csoundCreateCircularBuffer"},
		{&a.readCircularBuffer, "csoundReadCircularBuffer"},
		{&a.peekCircularBuffer, "csoundPeekCircularBuffer"},
		{&a.writeCircularBuffer, "csoundWriteCircularBuffer"},
		{&a.flushCircularBuffer, "csoundFlushCircularBuffer"},
		{&a.destroyCircularBuffer, "csoundDestroyCircularBuffer"},
	}

	for _, s := range symbols {
		sym, err := lookupSymbol(a.handle, s.name)
		if err != nil || sym == 0 {
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, s.name)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	return nil
}
