package csound

import (
	"math"
	"sync"
)

// SilenceDBFS is the level reported for silence.
const SilenceDBFS = -100

// LevelMeter is an AudioOutput that measures the peak and RMS level of
// everything the engine renders. Levels are relative to the engine's 0dbfs.
type LevelMeter struct {
	mu       sync.Mutex
	zeroDBFS float64
	peak     float64
	sumSq    float64
	samples  int64
}

// NewLevelMeter creates a meter for an engine whose full scale is zeroDBFS.
func NewLevelMeter(zeroDBFS float64) *LevelMeter {
	if zeroDBFS <= 0 {
		zeroDBFS = 1
	}
	return &LevelMeter{zeroDBFS: zeroDBFS}
}

// WriteSpout implements AudioOutput.
func (m *LevelMeter) WriteSpout(buf []float64, nchnls int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range buf {
		v := math.Abs(s / m.zeroDBFS)
		if v > m.peak {
			m.peak = v
		}
		m.sumSq += v * v
	}
	m.samples += int64(len(buf))
	return nil
}

// Peak returns the highest absolute sample seen, in dBFS.
func (m *LevelMeter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return toDBFS(m.peak)
}

// RMS returns the RMS level over all samples seen, in dBFS.
func (m *LevelMeter) RMS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return SilenceDBFS
	}
	return toDBFS(math.Sqrt(m.sumSq / float64(m.samples)))
}

// Reset clears the measurements.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.peak, m.sumSq, m.samples = 0, 0, 0
	m.mu.Unlock()
}

func toDBFS(v float64) float64 {
	if v <= 0 {
		return SilenceDBFS
	}
	return math.Max(20*math.Log10(v), SilenceDBFS)
}
