package csound

import "unsafe"

type nativeAudioDevice struct {
	deviceName [128]byte
	deviceID   [128]byte
	rtModule   [128]byte
	maxNchnls  int32
	isOutput   int32
}

type nativeMidiDevice struct {
	deviceName    [128]byte
	interfaceName [128]byte
	deviceID      [128]byte
	midiModule    [128]byte
	isOutput      int32
}

// AudioDevice describes an audio device reported by the real-time module.
type AudioDevice struct {
	Name      string
	ID        string
	Module    string
	MaxNchnls int
	IsOutput  bool
}

// MidiDevice describes a MIDI device reported by the MIDI module.
type MidiDevice struct {
	Name      string
	Interface string
	ID        string
	Module    string
	IsOutput  bool
}

// AudioDevices lists input or output audio devices. It is only meaningful
// after an orchestra has been compiled.
func (c *Csound) AudioDevices(output bool) []AudioDevice {
	if c.cs == 0 {
		return nil
	}
	n := c.api.getAudioDevList(c.cs, nil, boolToInt32(output))
	if n <= 0 {
		return nil
	}
	devs := make([]nativeAudioDevice, n)
	n = c.api.getAudioDevList(c.cs, unsafe.Pointer(&devs[0]), boolToInt32(output))
	out := make([]AudioDevice, 0, n)
	for _, d := range devs[:min(int(n), len(devs))] {
		out = append(out, AudioDevice{
			Name:      fixedString(d.deviceName[:]),
			ID:        fixedString(d.deviceID[:]),
			Module:    fixedString(d.rtModule[:]),
			MaxNchnls: int(d.maxNchnls),
			IsOutput:  d.isOutput == 1,
		})
	}
	return out
}

// MidiDevices lists input or output MIDI devices.
func (c *Csound) MidiDevices(output bool) []MidiDevice {
	if c.cs == 0 {
		return nil
	}
	n := c.api.getMIDIDevList(c.cs, nil, boolToInt32(output))
	if n <= 0 {
		return nil
	}
	devs := make([]nativeMidiDevice, n)
	n = c.api.getMIDIDevList(c.cs, unsafe.Pointer(&devs[0]), boolToInt32(output))
	out := make([]MidiDevice, 0, n)
	for _, d := range devs[:min(int(n), len(devs))] {
		out = append(out, MidiDevice{
			Name:      fixedString(d.deviceName[:]),
			Interface: fixedString(d.interfaceName[:]),
			ID:        fixedString(d.deviceID[:]),
			Module:    fixedString(d.midiModule[:]),
			IsOutput:  d.isOutput == 1,
		})
	}
	return out
}
