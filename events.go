package csound

import (
	"fmt"
	"time"
)

// EventKind is the type of a score event.
type EventKind int32

const (
	EventInstrument EventKind = 0 // i
	EventTable      EventKind = 1 // f
	EventEnd        EventKind = 2 // e
)

// ParseEventKind maps a score statement letter to an EventKind.
func ParseEventKind(r rune) (EventKind, error) {
	switch r {
	case 'i':
		return EventInstrument, nil
	case 'f':
		return EventTable, nil
	case 'e':
		return EventEnd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidEvent, r)
}

func (k EventKind) String() string {
	switch k {
	case EventInstrument:
		return "i"
	case EventTable:
		return "f"
	case EventEnd:
		return "e"
	}
	return fmt.Sprintf("EventKind(%d)", int32(k))
}

func (k EventKind) valid() bool {
	return k >= EventInstrument && k <= EventEnd
}

// Event sends a score event and waits until the engine has taken it.
func (c *Csound) Event(kind EventKind, pfields ...float64) error {
	return c.event(kind, pfields, 0)
}

// EventAsync sends a score event without waiting.
func (c *Csound) EventAsync(kind EventKind, pfields ...float64) error {
	return c.event(kind, pfields, 1)
}

func (c *Csound) event(kind EventKind, pfields []float64, async int32) error {
	if !kind.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidEvent, kind)
	}
	if c.cs == 0 {
		return ErrClosed
	}
	var p *float64
	if len(pfields) > 0 {
		p = &pfields[0]
	}
	c.api.event(c.cs, int32(kind), p, int32(len(pfields)), async)
	keepAlive(pfields)
	return nil
}

// EventString sends one or more score lines, applying score preprocessing.
func (c *Csound) EventString(s string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	c.api.eventString(c.cs, s, 0)
	return nil
}

// InputMessage sends score lines without waiting, like line events (-L).
func (c *Csound) InputMessage(s string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	c.api.eventString(c.cs, s, 1)
	return nil
}

// KeyPress sets the key reported by the sensekey opcode.
func (c *Csound) KeyPress(key byte) {
	if c.cs != 0 {
		c.api.keyPress(c.cs, key)
	}
}

// Score handling

// ScoreTime returns the current score time in seconds.
func (c *Csound) ScoreTime() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getScoreTime(c.cs)
}

// IsScorePending reports whether score events are performed.
func (c *Csound) IsScorePending() bool {
	if c.cs == 0 {
		return false
	}
	return c.api.isScorePending(c.cs) != 0
}

// SetScorePending turns score event performance on or off. Real-time events
// are performed either way.
func (c *Csound) SetScorePending(pending bool) {
	if c.cs != 0 {
		c.api.setScorePending(c.cs, boolToInt32(pending))
	}
}

// ScoreOffsetSeconds returns the score start offset.
func (c *Csound) ScoreOffsetSeconds() float64 {
	if c.cs == 0 {
		return 0
	}
	return c.api.getScoreOffsetSeconds(c.cs)
}

// SetScoreOffsetSeconds seeks the score to t seconds.
func (c *Csound) SetScoreOffsetSeconds(t float64) {
	if c.cs != 0 {
		c.api.setScoreOffsetSeconds(c.cs, t)
	}
}

// RewindScore restarts the score from the offset.
func (c *Csound) RewindScore() {
	if c.cs != 0 {
		c.api.rewindScore(c.cs)
	}
}

// Sleep blocks the calling thread for d using the engine's timer.
func (c *Csound) Sleep(d time.Duration) {
	if c.cs != 0 {
		c.api.sleep(uintptr(d.Milliseconds()))
	}
}

// Tables

// TableLength returns the length of a function table without the guard
// point.
func (c *Csound) TableLength(table int) (int, error) {
	if c.cs == 0 {
		return 0, ErrClosed
	}
	n := c.api.tableLength(c.cs, int32(table))
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrTableNotFound, table)
	}
	return int(n), nil
}

// Table copies a function table out of the engine.
func (c *Csound) Table(table int) ([]float64, error) {
	if c.cs == 0 {
		return nil, ErrClosed
	}
	var p *float64
	n := c.api.getTable(c.cs, &p, int32(table))
	if n < 0 || p == nil {
		return nil, fmt.Errorf("%w: %d", ErrTableNotFound, table)
	}
	return append([]float64(nil), unsafeFloats(p, int(n))...), nil
}

// SetTable copies data into a function table. Extra values are ignored.
// It returns the number of values written.
func (c *Csound) SetTable(table int, data []float64) (int, error) {
	if c.cs == 0 {
		return 0, ErrClosed
	}
	var p *float64
	n := c.api.getTable(c.cs, &p, int32(table))
	if n < 0 || p == nil {
		return 0, fmt.Errorf("%w: %d", ErrTableNotFound, table)
	}
	return copy(unsafeFloats(p, int(n)), data), nil
}

// TableArgs returns the GEN number followed by the arguments used to build
// a table.
func (c *Csound) TableArgs(table int) ([]float64, error) {
	if c.cs == 0 {
		return nil, ErrClosed
	}
	var p *float64
	n := c.api.getTableArgs(c.cs, &p, int32(table))
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrTableNotFound, table)
	}
	if p == nil {
		return nil, nil
	}
	return append([]float64(nil), unsafeFloats(p, int(n))...), nil
}

// Plugins

// LoadPlugins loads every plugin library in dir.
func (c *Csound) LoadPlugins(dir string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	return codeToError("load plugins", c.api.loadPlugins(c.cs, dir))
}
