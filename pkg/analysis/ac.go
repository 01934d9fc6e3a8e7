package analysis

import (
	"fmt"
	"math"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/device"
)

// ACAnalysis is the small-signal frequency sweep (§4.6 "Bode/AC sweep"):
// a DC operating point linearizes every nonlinear device once, then the
// complex MNA system is solved directly (no Newton iteration - AC is
// already linear) at each log/linear-spaced frequency.
type ACAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	startFreq   float64
	stopFreq    float64
	numPoints   int
	pointsType  string // "DEC", "OCT", "LIN"
	frequencies []float64
}

func NewAC(fStart, fStop float64, nPoints int, pType string) *ACAnalysis {
	return &ACAnalysis{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startFreq:    fStart,
		stopFreq:     fStop,
		numPoints:    nPoints,
		pointsType:   pType,
	}
}

func (ac *ACAnalysis) Setup(asm *mna.Assembly) error {
	ac.Circuit = asm

	if err := ac.op.Setup(asm); err != nil {
		return fmt.Errorf("ac: operating point setup: %v", err)
	}
	if err := ac.op.Execute(); err != nil {
		return fmt.Errorf("ac: operating point analysis: %v", err)
	}

	ac.generateFrequencyPoints()
	return nil
}

func (ac *ACAnalysis) Execute() error {
	if ac.Circuit == nil {
		return fmt.Errorf("ac: circuit not set")
	}

	for _, freq := range ac.frequencies {
		ac.Circuit.Status = &device.CircuitStatus{Frequency: freq, Mode: device.ACAnalysis, Temp: ac.Circuit.Status.Temp}

		mat := ac.Circuit.GetMatrix()
		mat.Clear()
		if err := ac.Circuit.Stamp(ac.Circuit.Status); err != nil {
			return fmt.Errorf("ac: stamping at f=%g: %v", freq, err)
		}
		if err := mat.Solve(); err != nil {
			return fmt.Errorf("ac: solve at f=%g: %v", freq, err)
		}

		solution := make(map[string]complex128)
		for idx := 1; idx <= ac.Circuit.GetNumNodes(); idx++ {
			real, imag := mat.GetComplexSolution(idx)
			solution[fmt.Sprintf("V(%d)", idx)] = complex(real, imag)
		}
		for _, dev := range ac.Circuit.GetDevices() {
			if v, ok := dev.(*device.VoltageSource); ok {
				bIdx := v.BranchIndex()
				real, imag := mat.GetComplexSolution(bIdx)
				solution[fmt.Sprintf("I(%s)", dev.GetName())] = complex(real, imag)
			}
		}

		ac.StoreACResult(freq, solution)
	}

	return nil
}

// TransferFunction returns |Vout/Vin| and its phase at every swept
// frequency, the literal quantity §4.6's Bode analysis reports.
func (ac *ACAnalysis) TransferFunction(vinNode, voutNode int) (mag, phaseDeg []float64) {
	freqs := ac.results["FREQ"]
	magIn := ac.results[fmt.Sprintf("V(%d)_MAG", vinNode)]
	phIn := ac.results[fmt.Sprintf("V(%d)_PHASE", vinNode)]
	magOut := ac.results[fmt.Sprintf("V(%d)_MAG", voutNode)]
	phOut := ac.results[fmt.Sprintf("V(%d)_PHASE", voutNode)]

	mag = make([]float64, len(freqs))
	phaseDeg = make([]float64, len(freqs))
	for i := range freqs {
		if magIn[i] == 0 {
			mag[i] = math.Inf(1)
			continue
		}
		mag[i] = magOut[i] / magIn[i]
		phaseDeg[i] = phOut[i] - phIn[i]
	}
	return mag, phaseDeg
}

func (ac *ACAnalysis) generateFrequencyPoints() {
	ac.frequencies = make([]float64, ac.numPoints)

	switch ac.pointsType {
	case "DEC":
		logStart := math.Log10(ac.startFreq)
		logStop := math.Log10(ac.stopFreq)
		step := (logStop - logStart) / float64(ac.numPoints-1)
		for i := range ac.numPoints {
			ac.frequencies[i] = math.Pow(10, logStart+float64(i)*step)
		}

	case "OCT":
		logStart := math.Log2(ac.startFreq)
		logStop := math.Log2(ac.stopFreq)
		step := (logStop - logStart) / float64(ac.numPoints-1)
		for i := range ac.numPoints {
			ac.frequencies[i] = math.Pow(2, logStart+float64(i)*step)
		}

	case "LIN":
		step := (ac.stopFreq - ac.startFreq) / float64(ac.numPoints-1)
		for i := range ac.numPoints {
			ac.frequencies[i] = ac.startFreq + float64(i)*step
		}
	}
}
