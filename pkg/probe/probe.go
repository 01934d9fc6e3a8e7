// Package probe implements the oscilloscope front-end's sampling pipeline
// (Component F, waveform half): per-channel ring buffers, the trigger
// state machine, and an FFT over sampled waveforms.
package probe

import (
	"github.com/anton-oss/circuitsim/internal/consts"
)

// Sample is one (time, voltage) scope sample.
type Sample struct {
	T, V float64
}

// RingBuffer is a fixed-capacity circular buffer of samples; once full,
// appends overwrite the oldest entry, per §4.6's "overwriting is allowed".
type RingBuffer struct {
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

// NewRingBuffer allocates a buffer capped at consts.MaxHistory when cap<=0.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = consts.MaxHistory
	}
	return &RingBuffer{buf: make([]Sample, capacity)}
}

func (r *RingBuffer) Append(s Sample) {
	n := len(r.buf)
	if r.count < n {
		r.buf[(r.head+r.count)%n] = s
		r.count++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % n
}

// Len returns the number of live samples.
func (r *RingBuffer) Len() int { return r.count }

// Samples returns every live sample in chronological order.
func (r *RingBuffer) Samples() []Sample {
	out := make([]Sample, r.count)
	n := len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%n]
	}
	return out
}

// Clear empties the buffer without reallocating, for sweep/Monte-Carlo
// per-run resets.
func (r *RingBuffer) Clear() {
	r.head, r.count = 0, 0
}

// Probe pairs a circuit node channel with its sample history.
type Probe struct {
	NodeID  int
	Channel int
	History *RingBuffer
}

// NewProbe returns a probe over nodeID/channel with a default-capacity
// ring buffer.
func NewProbe(nodeID, channel int) *Probe {
	return &Probe{NodeID: nodeID, Channel: channel, History: NewRingBuffer(0)}
}

// Sample appends one (t, v) reading, the call engine.Engine.Step makes
// once per accepted step for every attached probe.
func (p *Probe) Sample(t, v float64) {
	p.History.Append(Sample{T: t, V: v})
}
