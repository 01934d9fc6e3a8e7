package engine

import (
	"github.com/anton-oss/circuitsim/pkg/analysis"
	"github.com/anton-oss/circuitsim/pkg/probe"
	"github.com/anton-oss/circuitsim/pkg/solver"
)

// SimConfig carries every engine tunable (§6): time, solver, scope,
// analyses, and environment, in one struct literal the way the teacher's
// netlist directives (.tran/.ac/.dc) configure a run, generalized since
// this engine has no text-netlist directive syntax of its own (§6's
// persisted format is binary/JSON, not SPICE text).
type SimConfig struct {
	Time        TimeConfig
	Solver      solver.Config
	Scope       ScopeConfig
	Bode        BodeConfig
	Sweep       analysis.SweepSpec
	MonteCarlo  analysis.MonteCarloSpec
	Environment EnvironmentConfig
}

// TimeConfig is the §6 "time:" block.
type TimeConfig struct {
	DtInit float64
	DtMin  float64
	DtMax  float64
	Speed  float64 // wall-clock rate target, 1.0 = real time
}

// ScopeConfig is the §6 "scope:" block.
type ScopeConfig struct {
	TimeDiv     float64
	VoltDiv     float64
	Trigger     TriggerConfig
	DisplayMode string
	FFTOn       bool
	CursorsOn   bool
}

// TriggerConfig is the §6 "trigger.{mode,edge,channel,level,holdoff}" block.
type TriggerConfig struct {
	Mode    probe.TriggerMode
	Edge    probe.TriggerEdge
	Channel int
	Level   float64
	Holdoff float64
}

// BodeConfig is the §6 "analyses: bode range/points" block.
type BodeConfig struct {
	FStart, FStop float64
	Points        int
	PointsType    string // "DEC", "OCT", "LIN"
	VinNode       int
	VoutNode      int
}

// EnvironmentConfig is the §6 "environment:" block.
type EnvironmentConfig struct {
	AmbientTemp float64 // Kelvin
	LightLevel  float64 // 0..1, for LDR/thermistor devices
}

// DefaultConfig returns the engine's literal defaults (§4.5, §4.6, §4.4).
func DefaultConfig() SimConfig {
	return SimConfig{
		Time: TimeConfig{DtInit: 1e-5, DtMin: 1e-12, DtMax: 1e-3, Speed: 1.0},
		Solver: solver.DefaultConfig(),
		Scope: ScopeConfig{
			TimeDiv: 1e-3, VoltDiv: 1,
			Trigger: TriggerConfig{Mode: probe.TriggerAuto, Edge: probe.EdgeRising, Channel: 0, Level: 0, Holdoff: 1e-3},
		},
		Bode:        BodeConfig{FStart: 10, FStop: 1e6, Points: 50, PointsType: "DEC"},
		Environment: EnvironmentConfig{AmbientTemp: 300.15, LightLevel: 1.0},
	}
}
