package csound

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// ChannelKind is the data type of a bus channel.
type ChannelKind int

const (
	ControlChannel ChannelKind = 1
	AudioChannel   ChannelKind = 2
	StringChannel  ChannelKind = 3
	PvsChannel     ChannelKind = 4
	VarChannel     ChannelKind = 5
	ArrayChannel   ChannelKind = 6

	channelTypeMask = 15
)

func (k ChannelKind) String() string {
	switch k {
	case ControlChannel:
		return "control"
	case AudioChannel:
		return "audio"
	case StringChannel:
		return "string"
	case PvsChannel:
		return "pvs"
	case VarChannel:
		return "var"
	case ArrayChannel:
		return "array"
	default:
		return "unknown"
	}
}

// ParseChannelKind parses a kind name. "str" is accepted for string.
func ParseChannelKind(s string) (ChannelKind, error) {
	switch s {
	case "control":
		return ControlChannel, nil
	case "audio":
		return AudioChannel, nil
	case "string", "str":
		return StringChannel, nil
	case "pvs":
		return PvsChannel, nil
	case "var":
		return VarChannel, nil
	case "array":
		return ArrayChannel, nil
	}
	return 0, fmt.Errorf("csound: unknown channel kind %q", s)
}

// ChannelMode is the direction of a channel seen from the host.
type ChannelMode int

const (
	ChannelInput  ChannelMode = 16
	ChannelOutput ChannelMode = 32
)

func (m ChannelMode) IsInput() bool  { return m&ChannelInput != 0 }
func (m ChannelMode) IsOutput() bool { return m&ChannelOutput != 0 }

// PackChannelType combines a kind and a mode into a native channel type.
func PackChannelType(kind ChannelKind, mode ChannelMode) int {
	return int(kind) | int(mode)
}

// UnpackChannelType splits a native channel type.
func UnpackChannelType(t int) (ChannelKind, ChannelMode, error) {
	kind := ChannelKind(t & channelTypeMask)
	if kind < ControlChannel || kind > ArrayChannel {
		return 0, 0, fmt.Errorf("csound: invalid channel type %d", t)
	}
	return kind, ChannelMode(t - int(kind)), nil
}

// Hint behaviours for control channels.
const (
	HintNone = 0
	HintInt  = 1
	HintLin  = 2
	HintExp  = 3
)

// ControlChannelHints are the GUI hints attached to a control channel.
type ControlChannelHints struct {
	Behav      int
	Default    float64
	Min        float64
	Max        float64
	X, Y       int
	Width      int
	Height     int
	Attributes string
}

type nativeHints struct {
	behav      int32
	dflt       float64
	min        float64
	max        float64
	x, y       int32
	width      int32
	height     int32
	attributes *byte
}

func (h *nativeHints) toHints() ControlChannelHints {
	return ControlChannelHints{
		Behav:      int(h.behav),
		Default:    h.dflt,
		Min:        h.min,
		Max:        h.max,
		X:          int(h.x),
		Y:          int(h.y),
		Width:      int(h.width),
		Height:     int(h.height),
		Attributes: goString(h.attributes),
	}
}

type nativeChannelInfo struct {
	name  *byte
	typ   int32
	hints nativeHints
}

// ChannelInfo describes an allocated channel.
type ChannelInfo struct {
	Name  string
	Kind  ChannelKind
	Mode  ChannelMode
	Hints *ControlChannelHints
}

// ChannelInfo looks up a channel by name.
func (c *Csound) ChannelInfo(name string) (ChannelInfo, error) {
	if c.cs == 0 {
		return ChannelInfo{}, ErrClosed
	}
	var p unsafe.Pointer
	rc := c.api.getChannelPtr(c.cs, &p, name, 0)
	if rc == Error {
		return ChannelInfo{}, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	kind, mode, err := UnpackChannelType(int(rc))
	if err != nil {
		return ChannelInfo{}, err
	}
	info := ChannelInfo{Name: name, Kind: kind, Mode: mode}
	if kind == ControlChannel {
		if h, err := c.ControlChannelHints(name); err == nil {
			info.Hints = &h
		}
	}
	return info, nil
}

// ListChannels returns every allocated channel.
func (c *Csound) ListChannels() ([]ChannelInfo, error) {
	if c.cs == 0 {
		return nil, ErrClosed
	}
	var lst *nativeChannelInfo
	n := c.api.listChannels(c.cs, &lst)
	if n < 0 {
		return nil, codeToError("list channels", n)
	}
	if n == 0 || lst == nil {
		return nil, nil
	}
	defer c.api.deleteChannelList(c.cs, lst)

	out := make([]ChannelInfo, 0, n)
	for _, ci := range unsafe.Slice(lst, n) {
		kind, mode, err := UnpackChannelType(int(ci.typ))
		if err != nil {
			return nil, err
		}
		info := ChannelInfo{Name: goString(ci.name), Kind: kind, Mode: mode}
		if kind == ControlChannel {
			h := ci.hints.toHints()
			info.Hints = &h
		}
		out = append(out, info)
	}
	return out, nil
}

// ChannelVarTypeName returns the kind of a channel from its variable type.
func (c *Csound) ChannelVarTypeName(name string) (ChannelKind, error) {
	if c.cs == 0 {
		return 0, ErrClosed
	}
	p := c.api.getChannelVarTypeName(c.cs, name)
	if p == nil {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	switch goString(p) {
	case "k":
		return ControlChannel, nil
	case "a":
		return AudioChannel, nil
	case "S":
		return StringChannel, nil
	case "f":
		return PvsChannel, nil
	case "[":
		return ArrayChannel, nil
	}
	return VarChannel, nil
}

// ControlChannelHints returns the hints of a control channel.
func (c *Csound) ControlChannelHints(name string) (ControlChannelHints, error) {
	if c.cs == 0 {
		return ControlChannelHints{}, ErrClosed
	}
	var h nativeHints
	if rc := c.api.getControlChannelHints(c.cs, name, &h); rc != Success {
		return ControlChannelHints{}, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return h.toHints(), nil
}

// SetControlChannelHints sets the hints of a control channel, declaring it
// as an input/output channel if it does not exist yet. The hints are applied
// through the chn_k opcode.
func (c *Csound) SetControlChannelHints(name string, hints ControlChannelHints) error {
	if c.cs == 0 {
		return ErrClosed
	}
	mode := 3
	if info, err := c.ChannelInfo(name); err == nil {
		if info.Kind != ControlChannel {
			return fmt.Errorf("csound: channel %s is not a control channel", name)
		}
		mode = chnMode(info.Mode)
	}
	return c.CompileOrc(chnKStatement(name, mode, hints))
}

func chnMode(m ChannelMode) int {
	mode := 0
	if m.IsInput() {
		mode |= 1
	}
	if m.IsOutput() {
		mode |= 2
	}
	if mode == 0 {
		mode = 3
	}
	return mode
}

func chnKStatement(name string, mode int, h ControlChannelHints) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	args := []string{
		strconv.Quote(name),
		strconv.Itoa(mode),
		strconv.Itoa(h.Behav),
		f(h.Default), f(h.Min), f(h.Max),
		strconv.Itoa(h.X), strconv.Itoa(h.Y),
		strconv.Itoa(h.Width), strconv.Itoa(h.Height),
	}
	if h.Attributes != "" {
		args = append(args, strconv.Quote(h.Attributes))
	}
	return "chn_k " + strings.Join(args, ", ") + "\n"
}

// LockChannel acquires the channel's spin lock.
func (c *Csound) LockChannel(name string) {
	if c.cs != 0 {
		c.api.lockChannel(c.cs, name)
	}
}

// UnlockChannel releases the channel's spin lock.
func (c *Csound) UnlockChannel(name string) {
	if c.cs != 0 {
		c.api.unlockChannel(c.cs, name)
	}
}

// ControlChannel reads a control channel.
func (c *Csound) ControlChannel(name string) (float64, error) {
	if c.cs == 0 {
		return 0, ErrClosed
	}
	var rc int32
	v := c.api.getControlChannel(c.cs, name, &rc)
	if rc != Success {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return v, nil
}

// SetControlChannel writes a control channel, creating it if needed.
func (c *Csound) SetControlChannel(name string, v float64) {
	if c.cs != 0 {
		c.api.setControlChannel(c.cs, name, v)
	}
}

// AudioChannel copies ksmps samples of an audio channel into buf.
func (c *Csound) AudioChannel(name string, buf []float64) error {
	if c.cs == 0 {
		return ErrClosed
	}
	if len(buf) < c.Ksmps() {
		return ErrBufferTooSmall
	}
	c.api.getAudioChannel(c.cs, name, &buf[0])
	return nil
}

// SetAudioChannel copies ksmps samples from samples into an audio channel.
func (c *Csound) SetAudioChannel(name string, samples []float64) error {
	if c.cs == 0 {
		return ErrClosed
	}
	if len(samples) < c.Ksmps() {
		return ErrBufferTooSmall
	}
	c.api.setAudioChannel(c.cs, name, &samples[0])
	return nil
}

// StringChannel reads a string channel.
func (c *Csound) StringChannel(name string) string {
	size := c.ChannelDatasize(name)
	if size <= 0 {
		return ""
	}
	buf := make([]byte, size+1)
	c.api.getStringChannel(c.cs, name, &buf[0])
	return fixedString(buf)
}

// SetStringChannel writes a string channel.
func (c *Csound) SetStringChannel(name, value string) {
	if c.cs != 0 {
		c.api.setStringChannel(c.cs, name, value)
	}
}

// ChannelDatasize returns the size of a channel's data in bytes (for string
// channels, the allocated string length).
func (c *Csound) ChannelDatasize(name string) int {
	if c.cs == 0 {
		return 0
	}
	return int(c.api.getChannelDatasize(c.cs, name))
}
