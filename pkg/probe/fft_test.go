package probe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFFTFindsSineFrequency checks that a pure tone sampled at a known
// rate produces its spectral peak at the matching bin.
func TestFFTFindsSineFrequency(t *testing.T) {
	const sampleRate = 8192.0
	const freq = 1000.0
	const n = 1024

	s := make([]float64, n)
	for i := range s {
		s[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}

	spec := FFT(s, sampleRate, n)
	require.Len(t, spec.Freq, n/2+1)

	peakIdx := 0
	peakMag := spec.MagDB[0]
	for i, m := range spec.MagDB {
		if m > peakMag {
			peakMag = m
			peakIdx = i
		}
	}

	wantBin := int(math.Round(freq / (sampleRate / n)))
	assert.InDelta(t, wantBin, peakIdx, 1, "peak bin should land on (or adjacent to) the tone's own bin")
}

func TestFFTRoundsLengthUpToPowerOfTwo(t *testing.T) {
	s := make([]float64, 100)
	spec := FFT(s, 1000, 100)
	assert.Equal(t, 128/2+1, len(spec.Freq))
}

func TestFFTDefaultsWhenLengthNonPositive(t *testing.T) {
	s := make([]float64, 10)
	spec := FFT(s, 1000, 0)
	assert.Equal(t, DefaultFFTLength/2+1, len(spec.Freq))
}
