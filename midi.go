package csound

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var midiCallbacks struct {
	once     sync.Once
	inOpen   uintptr
	read     uintptr
	inClose  uintptr
	outOpen  uintptr
	write    uintptr
	outClose uintptr
}

// errStatus is CSOUND_ERROR as a C int.
var errStatus int32 = Error

func statusResult(err error) uintptr {
	if err != nil {
		return uintptr(uint32(errStatus))
	}
	return 0
}

func countResult(n int, err error) uintptr {
	if err != nil {
		return uintptr(uint32(errStatus))
	}
	return uintptr(uint32(int32(n)))
}

func initMidiCallbacks() {
	midiCallbacks.inOpen = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer, dev *byte) uintptr {
		c := lookup(cs)
		if c == nil || c.midiIn == nil {
			return statusResult(ErrClosed)
		}
		return statusResult(c.midiIn.OpenMidiIn(goString(dev)))
	})
	midiCallbacks.read = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer, buf *byte, n uintptr) uintptr {
		c := lookup(cs)
		if c == nil || c.midiIn == nil || buf == nil {
			return 0
		}
		return countResult(c.midiIn.ReadMidi(unsafe.Slice(buf, int(int32(n)))))
	})
	midiCallbacks.inClose = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer) uintptr {
		c := lookup(cs)
		if c == nil || c.midiIn == nil {
			return 0
		}
		return statusResult(c.midiIn.CloseMidiIn())
	})
	midiCallbacks.outOpen = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer, dev *byte) uintptr {
		c := lookup(cs)
		if c == nil || c.midiOut == nil {
			return statusResult(ErrClosed)
		}
		return statusResult(c.midiOut.OpenMidiOut(goString(dev)))
	})
	midiCallbacks.write = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer, buf *byte, n uintptr) uintptr {
		c := lookup(cs)
		if c == nil || c.midiOut == nil || buf == nil {
			return 0
		}
		msg := append([]byte(nil), unsafe.Slice(buf, int(int32(n)))...)
		return countResult(c.midiOut.WriteMidi(msg))
	})
	midiCallbacks.outClose = purego.NewCallback(func(cs uintptr, _ unsafe.Pointer) uintptr {
		c := lookup(cs)
		if c == nil || c.midiOut == nil {
			return 0
		}
		return statusResult(c.midiOut.CloseMidiOut())
	})
}

// SetMidiBackends routes the engine's MIDI I/O to host devices. Either may
// be nil. Call before Start; host MIDI I/O is enabled as a side effect.
// The instance must then be released with Close: the callback registry keeps
// it reachable, so its finalizer never runs.
func (c *Csound) SetMidiBackends(in MidiInput, out MidiOutput) {
	if c.cs == 0 {
		return
	}
	midiCallbacks.once.Do(initMidiCallbacks)

	c.midiIn = in
	c.midiOut = out
	register(c)

	c.SetHostMidiIO()
	if in != nil {
		c.api.setMidiInOpenCB(c.cs, midiCallbacks.inOpen)
		c.api.setMidiReadCB(c.cs, midiCallbacks.read)
		c.api.setMidiInCloseCB(c.cs, midiCallbacks.inClose)
	}
	if out != nil {
		c.api.setMidiOutOpenCB(c.cs, midiCallbacks.outOpen)
		c.api.setMidiWriteCB(c.cs, midiCallbacks.write)
		c.api.setMidiOutCloseCB(c.cs, midiCallbacks.outClose)
	}
}
