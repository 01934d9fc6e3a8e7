package netlist

import (
	"math"

	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// maxParamSlots bounds the fixed-size parameter union every component
// record carries (§6 "props: ComponentProps union (fixed-size,
// discriminator-driven)"): the widest param list below (9 entries, MOSFET) with
// headroom for future device families.
const maxParamSlots = 32

// maxTerminals bounds the fixed terminal-id array a record carries; no
// device family in pkg/device needs more than 4 (MOSFET).
const maxTerminals = 8

// componentRecord is the on-disk layout of one component (§6): every
// field is fixed-size so the whole struct can be read/written with
// encoding/binary in one shot, matching the teacher's "no framing,
// fixed-size fields" netlist-line style generalized from text to bytes.
type componentRecord struct {
	Kind     int32
	X, Y     float32
	Rotation int32
	Label    [32]byte

	NumTerminals int32
	Terminals    [maxTerminals]int32

	Params [maxParamSlots]float64

	Tolerance        float64
	ToleranceEnabled uint8
	_                [7]byte // pad to 8

	ThermalPresent uint8
	_              [7]byte
	ThermalRth     float64
	ThermalCth     float64
	ThermalTMax    float64
	ThermalAmbient float64

	CoupledA [32]byte
	CoupledB [32]byte
}

// nodeRecord is the on-disk layout of one node (§6): id(i32), x(f32),
// y(f32), is_ground(u8 padded to 4).
type nodeRecord struct {
	ID       int32
	X, Y     float32
	IsGround uint8
	_        [3]byte
}

// wireRecord is the on-disk layout of one wire (§6): start/end node ids.
type wireRecord struct {
	Start, End int32
}

// paramKeys returns the ordered Params keys a given component kind
// persists, the discriminator that drives the union's layout. Kinds not
// listed here (the meters) have no Params entries any
// device.FromComponent path reads, so they persist none.
func paramKeys(k circuit.ComponentKind) []string {
	switch k {
	case circuit.KindResistor:
		return []string{"resistance", "tc1", "tc2"}
	case circuit.KindCapacitor:
		return []string{"capacitance"}
	case circuit.KindInductor:
		return []string{"inductance"}
	case circuit.KindMutualInductance:
		return []string{"coupling"}
	case circuit.KindDiode:
		return []string{"saturation_current", "n", "breakdown_voltage"}
	case circuit.KindZenerDiode:
		return []string{"breakdown_voltage", "saturation_current"}
	case circuit.KindSchottkyDiode:
		return []string{"saturation_current", "n"}
	case circuit.KindLED:
		return []string{"saturation_current", "n", "forward_voltage"}
	case circuit.KindBJT:
		return []string{"bf", "br", "is", "nf", "nr", "vaf", "ikf", "ise"}
	case circuit.KindMOSFET:
		return []string{"type", "level", "vto", "kp", "lambda", "w", "l", "gamma", "phi"}
	case circuit.KindOpAmp:
		return []string{"gain", "vrail", "rin", "rout", "gbw", "slew"}
	case circuit.KindVoltageSourceDC, circuit.KindVoltageSourceAC:
		return []string{"voltage", "ac_mag", "ac_phase"}
	case circuit.KindCurrentSourceDC:
		return []string{"current"}
	case circuit.KindSquareWaveSource, circuit.KindTriangleWaveSource, circuit.KindSawWaveSource, circuit.KindNoiseSource:
		return []string{"offset", "amplitude", "frequency", "phase"}
	case circuit.KindSwitch, circuit.KindPushButton, circuit.KindRelay:
		return []string{"on_resistance", "off_resistance", "closed"}
	case circuit.KindTransformer:
		return []string{"turns"}
	case circuit.KindLogicGate:
		return []string{"gate_op", "vhigh", "vlow"}
	case circuit.KindSchmittTrigger:
		return []string{"v_low_threshold", "v_high_threshold", "vhigh"}
	default:
		return nil
	}
}

func labelToBytes(s string) [32]byte {
	var out [32]byte
	n := copy(out[:], s)
	_ = n
	return out
}

func bytesToLabel(b [32]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// toRecord flattens comp into its fixed-size on-disk layout.
func toRecord(comp *circuit.Component) componentRecord {
	rec := componentRecord{
		Kind:     int32(comp.Kind),
		X:        float32(comp.X),
		Y:        float32(comp.Y),
		Rotation: int32(comp.Rotation),
		Label:    labelToBytes(comp.Name),
	}

	rec.NumTerminals = int32(len(comp.Terminals))
	for i, t := range comp.Terminals {
		if i >= maxTerminals {
			break
		}
		rec.Terminals[i] = int32(t)
	}

	// NaN marks a slot whose key the component never set, so a load
	// doesn't turn an absent model parameter into a literal zero.
	keys := paramKeys(comp.Kind)
	for i, key := range keys {
		if i >= maxParamSlots {
			break
		}
		if v, ok := comp.Params[key]; ok {
			rec.Params[i] = v
		} else {
			rec.Params[i] = math.NaN()
		}
	}

	rec.Tolerance = comp.Tolerance
	if comp.ToleranceEnabled {
		rec.ToleranceEnabled = 1
	}

	if comp.Thermal != nil {
		rec.ThermalPresent = 1
		rec.ThermalRth = comp.Thermal.Rth
		rec.ThermalCth = comp.Thermal.Cth
		rec.ThermalTMax = comp.Thermal.TMax
		rec.ThermalAmbient = comp.Thermal.AmbientT
	}

	if comp.Kind == circuit.KindMutualInductance && len(comp.CoupledInductors) == 2 {
		rec.CoupledA = labelToBytes(comp.CoupledInductors[0])
		rec.CoupledB = labelToBytes(comp.CoupledInductors[1])
	}

	return rec
}

// fromRecord reconstructs a Component from its on-disk layout.
func fromRecord(rec componentRecord) *circuit.Component {
	kind := circuit.ComponentKind(rec.Kind)

	n := int(rec.NumTerminals)
	if n < 0 || n > maxTerminals {
		n = 0
	}
	terminals := make([]int, n)
	for i := 0; i < n; i++ {
		terminals[i] = int(rec.Terminals[i])
	}

	params := make(map[string]float64)
	for i, key := range paramKeys(kind) {
		if i >= maxParamSlots {
			break
		}
		if !math.IsNaN(rec.Params[i]) {
			params[key] = rec.Params[i]
		}
	}

	comp := &circuit.Component{
		Kind:             kind,
		Name:             bytesToLabel(rec.Label),
		X:                float64(rec.X),
		Y:                float64(rec.Y),
		Rotation:         int(rec.Rotation),
		Terminals:        terminals,
		Params:           params,
		Sweeps:           make(map[string]circuit.SweepConfig),
		Tolerance:        rec.Tolerance,
		ToleranceEnabled: rec.ToleranceEnabled != 0,
	}

	if rec.ThermalPresent != 0 {
		comp.Thermal = &circuit.ThermalState{
			Temp: rec.ThermalAmbient,
			Rth:  rec.ThermalRth, Cth: rec.ThermalCth,
			TMax: rec.ThermalTMax, AmbientT: rec.ThermalAmbient,
		}
	}

	if kind == circuit.KindMutualInductance {
		a, b := bytesToLabel(rec.CoupledA), bytesToLabel(rec.CoupledB)
		if a != "" || b != "" {
			comp.CoupledInductors = []string{a, b}
		}
	}

	return comp
}
