package netlist

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// jsonFile is the human-readable mirror of the binary format (§6: "A
// companion human-readable JSON form mirrors the same fields").
type jsonFile struct {
	Version    uint32           `json:"version"`
	Components []jsonComponent  `json:"components"`
	Nodes      []jsonNode       `json:"nodes"`
	Wires      []jsonWire       `json:"wires"`
}

type jsonComponent struct {
	Kind             int32              `json:"kind"`
	Name             string             `json:"name"`
	X                float64            `json:"x"`
	Y                float64            `json:"y"`
	Rotation         int                `json:"rotation"`
	Terminals        []int              `json:"terminals"`
	Params           map[string]float64 `json:"params,omitempty"`
	Tolerance        float64            `json:"tolerance,omitempty"`
	ToleranceEnabled bool               `json:"tolerance_enabled,omitempty"`
	CoupledA         string             `json:"coupled_a,omitempty"`
	CoupledB         string             `json:"coupled_b,omitempty"`
	Thermal          *jsonThermal       `json:"thermal,omitempty"`
}

type jsonThermal struct {
	Rth, Cth, TMax, AmbientT float64
}

type jsonNode struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	IsGround bool    `json:"is_ground,omitempty"`
}

type jsonWire struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SaveJSON writes c to w as the §6 JSON mirror.
func SaveJSON(w io.Writer, c *circuit.Circuit) error {
	groundID, hasGround := c.GroundNodeID()

	file := jsonFile{Version: Version}
	for _, comp := range c.Components() {
		jc := jsonComponent{
			Kind: int32(comp.Kind), Name: comp.Name,
			X: comp.X, Y: comp.Y, Rotation: comp.Rotation,
			Terminals: comp.Terminals, Params: comp.Params,
			Tolerance: comp.Tolerance, ToleranceEnabled: comp.ToleranceEnabled,
		}
		if comp.Kind == circuit.KindMutualInductance && len(comp.CoupledInductors) == 2 {
			jc.CoupledA, jc.CoupledB = comp.CoupledInductors[0], comp.CoupledInductors[1]
		}
		if comp.Thermal != nil {
			jc.Thermal = &jsonThermal{
				Rth: comp.Thermal.Rth, Cth: comp.Thermal.Cth,
				TMax: comp.Thermal.TMax, AmbientT: comp.Thermal.AmbientT,
			}
		}
		file.Components = append(file.Components, jc)
	}
	for _, n := range c.Nodes() {
		file.Nodes = append(file.Nodes, jsonNode{
			ID: n.ID, X: n.X, Y: n.Y,
			IsGround: n.IsGround || (hasGround && n.ID == groundID),
		})
	}
	for _, w2 := range c.Wires() {
		file.Wires = append(file.Wires, jsonWire{Start: w2.Start, End: w2.End})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("netlist: encode json: %w", err)
	}
	return nil
}

// LoadJSON reads a circuit.Circuit back from the §6 JSON mirror.
func LoadJSON(r io.Reader, name string) (*circuit.Circuit, error) {
	var file jsonFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("netlist: %w: decoding json: %v", simerr.ErrCorruptNetlist, err)
	}
	if file.Version > MaxSupportedVersion {
		return nil, fmt.Errorf("netlist: %w: file version %d, engine supports up to %d", simerr.ErrUnsupportedVersion, file.Version, MaxSupportedVersion)
	}

	c := circuit.New(name)
	idToAllocated := make(map[int]int, len(file.Nodes))
	for _, n := range file.Nodes {
		allocated := c.AddNode(n.X, n.Y)
		idToAllocated[n.ID] = allocated
		if n.IsGround {
			if err := c.SetGround(allocated); err != nil {
				return nil, fmt.Errorf("netlist: %w: %v", simerr.ErrCorruptNetlist, err)
			}
		}
	}

	for i, w := range file.Wires {
		start, ok1 := idToAllocated[w.Start]
		end, ok2 := idToAllocated[w.End]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("netlist: %w: wire %d references unknown node", simerr.ErrCorruptNetlist, i)
		}
		if err := c.AddWire(start, end); err != nil {
			return nil, fmt.Errorf("netlist: %w: %v", simerr.ErrCorruptNetlist, err)
		}
	}

	for i, jc := range file.Components {
		terminals := make([]int, len(jc.Terminals))
		for j, t := range jc.Terminals {
			allocated, ok := idToAllocated[t]
			if !ok {
				return nil, fmt.Errorf("netlist: %w: component %d references unknown node %d", simerr.ErrCorruptNetlist, i, t)
			}
			terminals[j] = allocated
		}

		params := jc.Params
		if params == nil {
			params = make(map[string]float64)
		}
		comp := &circuit.Component{
			Kind: circuit.ComponentKind(jc.Kind), Name: jc.Name,
			X: jc.X, Y: jc.Y, Rotation: jc.Rotation,
			Terminals: terminals, Params: params,
			Sweeps:           make(map[string]circuit.SweepConfig),
			Tolerance:        jc.Tolerance,
			ToleranceEnabled: jc.ToleranceEnabled,
		}
		if jc.CoupledA != "" || jc.CoupledB != "" {
			comp.CoupledInductors = []string{jc.CoupledA, jc.CoupledB}
		}
		if jc.Thermal != nil {
			comp.Thermal = &circuit.ThermalState{
				Temp: jc.Thermal.AmbientT,
				Rth:  jc.Thermal.Rth, Cth: jc.Thermal.Cth,
				TMax: jc.Thermal.TMax, AmbientT: jc.Thermal.AmbientT,
			}
		}

		if err := c.AddComponent(comp); err != nil {
			return nil, fmt.Errorf("netlist: %w: component %d: %v", simerr.ErrCorruptNetlist, i, err)
		}
	}

	return c, nil
}
