// Command simrun is a scriptable batch front-end standing in for the
// interactive oscilloscope/editor host (§1, §6): it loads a persisted
// circuit, drives pkg/engine through a fixed-duration transient run, and
// prints the resulting probe waveforms the way the teacher's cmd/main.go
// prints analysis result tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/anton-oss/circuitsim/pkg/circuit"
	"github.com/anton-oss/circuitsim/pkg/engine"
	"github.com/anton-oss/circuitsim/pkg/netlist"
	"github.com/anton-oss/circuitsim/pkg/util"
)

func main() {
	netlistPath := flag.String("netlist", "", "path to a persisted circuit (.circ binary or .json); demo RC circuit when empty")
	duration := flag.Float64("duration", 10e-3, "simulated seconds to run")
	tick := flag.Float64("tick", 1e-3, "wall-clock seconds per engine.Step call")
	channel := flag.Int("channel", 0, "probe channel to print")
	flag.Parse()

	ckt, err := loadOrDemo(*netlistPath)
	if err != nil {
		log.Fatalf("simrun: %v", err)
	}

	eng := engine.New(engine.DefaultConfig())
	if err := eng.SetCircuit(ckt); err != nil {
		log.Fatalf("simrun: set circuit: %v", err)
	}

	for advanced := 0.0; advanced < *duration; {
		res, err := eng.Step(*tick)
		if err != nil {
			log.Fatalf("simrun: step at t=%g: %v", res.AdvancedTime, err)
		}
		for _, w := range res.Warnings {
			log.Printf("simrun: %s", w)
		}
		advanced = res.AdvancedTime
	}

	samples := eng.ProbeSamples(*channel)
	fmt.Printf("\nChannel %d: %d samples\n", *channel, len(samples))
	fmt.Println("Time            Voltage")
	fmt.Println("---------------------------")
	for _, s := range samples {
		fmt.Printf("%-15s %s\n", strings.TrimSpace(util.FormatValueFactor(s.T, "s")), util.FormatValueFactor(s.V, "V"))
	}
}

// loadOrDemo reads path (binary if it doesn't end in .json, JSON
// otherwise) or, when path is empty, builds a small RC-charging demo
// circuit (5 V source, 1 kOhm, 1 uF) so simrun has something to exercise with no
// arguments, the way the teacher's repo ships example .cir files.
func loadOrDemo(path string) (*circuit.Circuit, error) {
	if path == "" {
		return demoCircuit(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".json") {
		return netlist.LoadJSON(f, path)
	}
	return netlist.Load(f, path)
}

func demoCircuit() *circuit.Circuit {
	c := circuit.New("demo")

	gnd := c.AddNode(0, 0)
	in := c.AddNode(10, 0)
	out := c.AddNode(20, 0)
	_ = c.SetGround(gnd)

	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindVoltageSourceDC, Name: "V1",
		Terminals: []int{in, gnd},
		Params:    map[string]float64{"voltage": 5},
		Sweeps:    map[string]circuit.SweepConfig{},
	})
	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindResistor, Name: "R1",
		Terminals: []int{in, out},
		Params:    map[string]float64{"resistance": 1000},
		Sweeps:    map[string]circuit.SweepConfig{},
	})
	_ = c.AddComponent(&circuit.Component{
		Kind: circuit.KindCapacitor, Name: "C1",
		Terminals: []int{out, gnd},
		Params:    map[string]float64{"capacitance": 1e-6},
		Sweeps:    map[string]circuit.SweepConfig{},
	})

	_ = c.AddProbe(&circuit.Probe{NodeID: out, Channel: 0})
	return c
}
