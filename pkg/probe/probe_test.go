package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferOverwritesOldest(t *testing.T) {
	r := NewRingBuffer(3)
	r.Append(Sample{T: 0, V: 1})
	r.Append(Sample{T: 1, V: 2})
	r.Append(Sample{T: 2, V: 3})
	r.Append(Sample{T: 3, V: 4})

	require.Equal(t, 3, r.Len())
	got := r.Samples()
	want := []float64{2, 3, 4}
	for i, s := range got {
		assert.Equal(t, want[i], s.V)
	}
}

func TestRingBufferClear(t *testing.T) {
	r := NewRingBuffer(4)
	r.Append(Sample{T: 0, V: 1})
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Samples())
}

func TestProbeSampleAppendsHistory(t *testing.T) {
	p := NewProbe(5, 0)
	p.Sample(0, 1.5)
	p.Sample(1e-3, 2.5)
	require.Equal(t, 2, p.History.Len())
	assert.Equal(t, 2.5, p.History.Samples()[1].V)
}
