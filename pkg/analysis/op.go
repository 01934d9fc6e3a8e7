package analysis

import (
	"fmt"

	"github.com/anton-oss/circuitsim/internal/consts"
	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/device"
	"github.com/anton-oss/circuitsim/pkg/solver"
)

// OperatingPoint is the DC operating-point analysis (§4.6/§6 "OP"):
// Newton-Raphson at t=0 with GMIN ramp and source stepping on the full
// solver.Solve ladder.
type OperatingPoint struct {
	BaseAnalysis
	Config solver.Config
}

func NewOP() *OperatingPoint {
	return &OperatingPoint{BaseAnalysis: *NewBaseAnalysis(), Config: solver.DefaultConfig()}
}

func (op *OperatingPoint) Setup(asm *mna.Assembly) error {
	op.Circuit = asm
	return nil
}

func (op *OperatingPoint) Execute() error {
	if op.Circuit == nil {
		return fmt.Errorf("operating point: circuit not set")
	}

	status := &device.CircuitStatus{
		Time: 0,
		Mode: device.OperatingPointAnalysis,
		Temp: consts.TNomDefault,
	}
	op.Circuit.Status = status

	if err := solver.Solve(op.Circuit, status, op.Config, true); err != nil {
		return fmt.Errorf("operating point: %w", err)
	}

	op.storeResults()
	return nil
}

func (op *OperatingPoint) storeResults() {
	solution := op.Circuit.GetMatrix().Solution()
	for idx := 1; idx <= op.Circuit.GetNumNodes(); idx++ {
		op.results[fmt.Sprintf("V(%d)", idx)] = []float64{solution[idx]}
	}
	for devName, branchIdx := range op.Circuit.BranchIndices() {
		op.results[fmt.Sprintf("I(%s)", devName)] = []float64{solution[branchIdx]}
	}
}
