package analysis

import (
	"fmt"

	"github.com/anton-oss/circuitsim/internal/mna"
	"github.com/anton-oss/circuitsim/pkg/transient"
)

// Transient is the time-domain analysis driver (§4.5): an initial
// operating point (unless UseIC skips it), then repeated pkg/transient
// steps from startTime to stopTime, sampled into BaseAnalysis results.
type Transient struct {
	BaseAnalysis
	driver *transient.Driver

	op        *OperatingPoint
	startTime float64
	stopTime  float64
	useUIC    bool
}

// NewTransient mirrors the teacher's tStart/tStop/tStep/tMax/uic
// constructor; tStep seeds the driver's initial and tMax its ceiling.
func NewTransient(tStart, tStop, tStep, tMax float64, uic bool) *Transient {
	cfg := transient.DefaultConfig()
	if tStep > 0 {
		cfg.DtInit = tStep
	}
	if tMax > 0 {
		cfg.DtMax = tMax
	}

	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		driver:       transient.New(cfg),
		op:           NewOP(),
		startTime:    tStart,
		stopTime:     tStop,
		useUIC:       uic,
	}
}

// Driver exposes the underlying transient.Driver, for callers (pkg/engine)
// that need to keep stepping incrementally across host ticks instead of
// running to completion in one Execute call.
func (tr *Transient) Driver() *transient.Driver { return tr.driver }

func (tr *Transient) Setup(asm *mna.Assembly) error {
	tr.Circuit = asm

	if !tr.useUIC {
		if err := tr.op.Setup(asm); err != nil {
			return fmt.Errorf("transient: operating point setup: %v", err)
		}
		if err := tr.op.Execute(); err != nil {
			return fmt.Errorf("transient: operating point analysis: %v", err)
		}
	}
	return nil
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("transient: circuit not set")
	}

	for tr.driver.Time() < tr.stopTime {
		tr.driver.ClampDt(tr.stopTime - tr.driver.Time())
		res, err := tr.driver.Step(tr.Circuit)
		if err != nil {
			return fmt.Errorf("transient: %w", err)
		}
		if res.AdvancedTime >= tr.startTime {
			tr.StoreTimeResult(res.AdvancedTime, tr.Circuit.GetSolution())
		}
	}
	return nil
}
