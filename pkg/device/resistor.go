package device

import (
	"fmt"
)

type Resistor struct {
	BaseDevice
	Tc1  float64
	Tc2  float64
	Tnom float64

	lastTemp float64 // status.Temp at the last Stamp, used by Power
	lastTime float64 // status.Time at the last Stamp, used by Power for sweep lookup
	failed   bool    // latched by the thermal sub-model; true = open circuit
}

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	return &Resistor{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
			Value:     value,
		},
		Tc1:  0.0,
		Tc2:  0.0,
		Tnom: 300.15,
	}
}

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) Stamp(matrix DeviceMatrix, status *CircuitStatus) error {
	if len(r.Nodes) != 2 {
		return fmt.Errorf("resistor %s: requires exactly 2 nodes", r.Name)
	}

	r.lastTemp = status.Temp
	r.lastTime = status.Time
	if r.failed {
		return nil // thermally failed: open circuit, no stamp
	}

	n1, n2 := r.Nodes[0], r.Nodes[1]

	ohms := r.LiveValue("resistance", status.Time, r.Value)
	g := 1.0 / r.temperatureAdjustedValue(ohms, status.Temp)

	switch status.Mode {
	case ACAnalysis:
		// AC
		if n1 != 0 {
			matrix.AddComplexElement(n1, n1, g, 0)
			if n2 != 0 {
				matrix.AddComplexElement(n1, n2, -g, 0)
			}
		}
		if n2 != 0 {
			if n1 != 0 {
				matrix.AddComplexElement(n2, n1, -g, 0)
			}
			matrix.AddComplexElement(n2, n2, g, 0)
		}

	default:
		// OP/Transient
		if n1 != 0 {
			matrix.AddElement(n1, n1, g)
			if n2 != 0 {
				matrix.AddElement(n1, n2, -g)
			}
		}
		if n2 != 0 {
			if n1 != 0 {
				matrix.AddElement(n2, n1, -g)
			}
			matrix.AddElement(n2, n2, g)
		}
	}

	return nil
}

func (r *Resistor) temperatureAdjustedValue(ohms, temp float64) float64 {
	dt := temp - r.Tnom
	factor := 1.0 + r.Tc1*dt + r.Tc2*dt*dt
	return ohms * factor
}

// Power reports P = ΔV²/R_eff from the latest node-voltage solution,
// the §4.3 thermal sub-model's "Track P = ΔV²/R per-step for thermal".
func (r *Resistor) Power(solution []float64) float64 {
	if r.failed || len(r.Nodes) != 2 {
		return 0
	}
	n1, n2 := r.Nodes[0], r.Nodes[1]
	var v1, v2 float64
	if n1 != 0 && n1 < len(solution) {
		v1 = solution[n1]
	}
	if n2 != 0 && n2 < len(solution) {
		v2 = solution[n2]
	}
	dv := v1 - v2
	ohms := r.LiveValue("resistance", r.lastTime, r.Value)
	return dv * dv / r.temperatureAdjustedValue(ohms, r.lastTemp)
}

// SetFailed latches the open-circuit state the thermal sub-model applies
// once accumulated damage reaches 1 (§4.3).
func (r *Resistor) SetFailed(failed bool) { r.failed = failed }
