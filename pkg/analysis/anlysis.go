// Package analysis implements the engine's analysis drivers (the second
// half of Component F): DC operating point, DC sweep, transient, AC/Bode
// sweep, parametric sweep and Monte-Carlo, each built on pkg/solver (the
// Newton-Raphson driver) and, for transient, pkg/transient.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/anton-oss/circuitsim/internal/mna"
)

const (
	OP int = iota
	TRAN
	AC
)

// Analysis is the common analysis-driver contract every concrete analysis
// in this package implements.
type Analysis interface {
	Setup(asm *mna.Assembly) error
	Execute() error
	GetResults() map[string][]float64
}

// BaseAnalysis holds the result table and the assembly every analysis
// operates over; NR convergence itself is delegated to pkg/solver rather
// than duplicated per analysis type.
type BaseAnalysis struct {
	Circuit *mna.Assembly
	results map[string][]float64
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{results: make(map[string][]float64)}
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	if times := a.results["TIME"]; len(times) > 0 && times[len(times)-1] == time {
		return
	}
	a.results["TIME"] = append(a.results["TIME"], time)
	for name, value := range solution {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) StoreACResult(freq float64, solution map[string]complex128) {
	a.results["FREQ"] = append(a.results["FREQ"], freq)
	for name, value := range solution {
		a.results[name+"_MAG"] = append(a.results[name+"_MAG"], cmplx.Abs(value))
		a.results[name+"_PHASE"] = append(a.results[name+"_PHASE"], cmplx.Phase(value)*180.0/math.Pi)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
