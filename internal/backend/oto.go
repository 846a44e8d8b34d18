package backend

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// ring is a blocking float32 FIFO between the render loop and the audio
// device. Writers wait for space, which paces rendering to real time; the
// reader never waits and plays silence on underrun.
type ring struct {
	mu      sync.Mutex
	space   *sync.Cond
	data    []float32
	r, n    int
	closed  bool
	underrs int
}

func newRing(size int) *ring {
	r := &ring{data: make([]float32, size)}
	r.space = sync.NewCond(&r.mu)
	return r
}

func (r *ring) write(samples []float64, scale float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range samples {
		for r.n == len(r.data) && !r.closed {
			r.space.Wait()
		}
		if r.closed {
			return ErrClosed
		}
		r.data[(r.r+r.n)%len(r.data)] = float32(v * scale)
		r.n++
	}
	return nil
}

func (r *ring) read(out []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := 0
	for ; i < len(out) && r.n > 0; i++ {
		out[i] = r.data[r.r]
		r.r = (r.r + 1) % len(r.data)
		r.n--
	}
	if i < len(out) {
		clear(out[i:])
		r.underrs++
	}
	r.space.Broadcast()
}

func (r *ring) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.space.Broadcast()
}

func (r *ring) underruns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.underrs
}

// OtoOutput plays the engine output on the default audio device.
type OtoOutput struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *ring
	scale  float64
	tmp    []float32

	mutex   sync.Mutex
	started bool
}

// NewOtoOutput opens the audio device. bufferFrames sizes the ring buffer
// between the render loop and the device.
func NewOtoOutput(sampleRate, channels int, zeroDBFS float64, bufferFrames int) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	if bufferFrames <= 0 {
		bufferFrames = 4096
	}
	scale := 1.0
	if zeroDBFS > 0 {
		scale = 1 / zeroDBFS
	}
	o := &OtoOutput{
		ctx:   ctx,
		ring:  newRing(bufferFrames * channels),
		scale: scale,
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// WriteSpout queues one control period for playback, starting the player
// on first use. It blocks while the device buffer is full.
func (o *OtoOutput) WriteSpout(buf []float64, _ int) error {
	o.mutex.Lock()
	if !o.started && o.player != nil {
		o.player.Play()
		o.started = true
	}
	o.mutex.Unlock()
	return o.ring.write(buf, o.scale)
}

// Read implements io.Reader for the oto player.
func (o *OtoOutput) Read(p []byte) (int, error) {
	n := len(p) / 4
	if cap(o.tmp) < n {
		o.tmp = make([]float32, n)
	}
	samples := o.tmp[:n]
	o.ring.read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

// Underruns returns how often the device found the buffer empty.
func (o *OtoOutput) Underruns() int { return o.ring.underruns() }

// Close stops playback and releases blocked writers.
func (o *OtoOutput) Close() error {
	o.ring.close()
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.player != nil {
		err := o.player.Close()
		o.player = nil
		o.started = false
		return err
	}
	return nil
}
