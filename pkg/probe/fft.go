package probe

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultFFTLength is the power-of-two window length §4.6 specifies.
const DefaultFFTLength int = 1024

// Spectrum holds a one-sided FFT result: magnitude in dB and phase in
// degrees, both of length N/2+1.
type Spectrum struct {
	Freq     []float64 // Hz, per bin
	MagDB    []float64
	PhaseDeg []float64
}

// FFT windows the most recent n (default DefaultFFTLength, rounded up to
// a power of two) samples of s with a Hann window and runs a radix-2
// Cooley-Tukey real FFT over them via gonum's dsp/fourier, per §4.6.
// sampleRate is the uniform sampling rate (Hz) the caller resampled s at;
// s must already be evenly spaced (the probe ring buffer's raw history
// generally is not, since steps are adaptive - callers resample first).
func FFT(s []float64, sampleRate float64, n int) Spectrum {
	if n <= 0 {
		n = DefaultFFTLength
	}
	n = nextPow2(n)

	windowed := make([]float64, n)
	m := len(s)
	start := 0
	if m > n {
		start = m - n
	}
	for i := 0; i < n; i++ {
		var x float64
		if si := start + i; si < m {
			x = s[si]
		}
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		windowed[i] = x * w
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	out := Spectrum{
		Freq:     make([]float64, len(coeffs)),
		MagDB:    make([]float64, len(coeffs)),
		PhaseDeg: make([]float64, len(coeffs)),
	}
	binHz := sampleRate / float64(n)
	for i, c := range coeffs {
		mag := complexAbs(c)
		out.Freq[i] = float64(i) * binHz
		out.MagDB[i] = 20 * math.Log10(math.Max(mag, 1e-300))
		out.PhaseDeg[i] = complexPhase(c) * 180 / math.Pi
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func complexAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func complexPhase(c complex128) float64 {
	return math.Atan2(imag(c), real(c))
}
