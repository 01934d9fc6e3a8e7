// Package mna wraps github.com/edp1096/sparse as the engine's default
// stamping backend (§4.3): a sparse system sized to the node count plus
// every voltage-source/inductor branch unknown, exposed through the
// DeviceMatrix interface every pkg/device family stamps into.
package mna

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// System is the sparse MNA system backing one Assembly: the sparse
// matrix itself, its real/complex RHS and solution vectors, and the
// sparse.Configuration that picked real-only vs. complex storage.
type System struct {
	Size int

	sparse       *sparse.Matrix
	cfg          *sparse.Configuration
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
}

// NewMatrix allocates a size x size MNA system, real-valued unless
// isComplex requests the doubled-length storage an AC analysis needs.
func NewMatrix(size int, isComplex bool) *System {
	cfg := &sparse.Configuration{
		Real:           true,
		Complex:        isComplex,
		Expandable:     true,
		ModifiedNodal:  true,
		Translate:      true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}

	mat, err := sparse.Create(int64(size), cfg)
	if err != nil {
		fmt.Printf("mna: creating sparse matrix: %v\n", err)
		return nil
	}

	// rhs/solution carry a size+1 slot for 1-based indexing; a complex
	// system interleaves real/imag pairs in one doubled-length vector
	// instead of the separate-vectors layout (cfg.SeparatedComplexVectors
	// stays false), so rhsImag/solutionImag collapse to a single unused slot.
	vecSize := size + 1
	vecSizeImag := size + 1
	if isComplex {
		vecSize *= 2
		vecSizeImag = 1
	}

	return &System{
		Size:         size,
		sparse:       mat,
		cfg:          cfg,
		rhs:          make([]float64, vecSize),
		rhsImag:      make([]float64, vecSizeImag),
		solution:     make([]float64, vecSize),
		solutionImag: make([]float64, vecSizeImag),
	}
}

// SetupElements pre-touches every (i,j) pair so the sparse backend's
// link structure exists before the first Factor call.
func (m *System) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		for j := 1; j <= m.Size; j++ {
			m.sparse.GetElement(int64(i), int64(j))
		}
	}
}

// AddElement and friends are the additive stamping primitives devices
// target through DeviceMatrix; an out-of-range (i,j) is silently
// dropped rather than logged, since every caller derives indices from
// topology.NodeMap and Assembly's branch map, which never produce one.
func (m *System) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}
	m.sparse.GetElement(int64(i), int64(j)).Real += value
}

func (m *System) AddComplexElement(i, j int, real, imag float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}
	el := m.sparse.GetElement(int64(i), int64(j))
	el.Real += real
	el.Imag += imag
}

func (m *System) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += value
}

func (m *System) AddComplexRHS(i int, real, imag float64) {
	if i <= 0 || i > m.Size {
		return
	}
	if m.cfg.SeparatedComplexVectors {
		m.rhs[i] += real
		m.rhsImag[i] += imag
		return
	}
	m.rhs[2*i] += real
	m.rhs[2*i+1] += imag
}

// LoadGmin ramps the GMIN conductance §4.4 adds to every node's diagonal
// entry, rescuing cold-start convergence in diode/transistor-heavy
// circuits.
func (m *System) LoadGmin(gmin float64) {
	for i := 1; i <= m.Size; i++ {
		if diag := m.GetDiagElement(i); diag != nil {
			diag.Real += gmin
		}
	}
}

func (m *System) GetDiagElement(i int) *sparse.Element {
	if i <= 0 || i > m.Size {
		return nil
	}
	return m.sparse.Diags[i]
}

// Clear zeroes the matrix and RHS vectors ahead of the next Stamp pass,
// without releasing the sparse backend's link structure.
func (m *System) Clear() {
	m.sparse.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i := range m.rhsImag {
		m.rhsImag[i] = 0
	}
}

// Solve factors the system and solves for the current RHS, dispatching
// to the complex solve when this System was allocated with isComplex.
func (m *System) Solve() error {
	if err := m.sparse.Factor(); err != nil {
		return fmt.Errorf("mna: factoring: %v", err)
	}

	var err error
	if m.cfg.Complex {
		m.solution, m.solutionImag, err = m.sparse.SolveComplex(m.rhs, m.rhsImag)
	} else {
		m.solution, err = m.sparse.Solve(m.rhs)
	}
	if err != nil {
		return fmt.Errorf("mna: solving: %v", err)
	}
	return nil
}

func (m *System) RHS() []float64          { return m.rhs }
func (m *System) Solution() []float64     { return m.solution }
func (m *System) SolutionImag() []float64 { return m.solutionImag }

// GetComplexSolution returns the (real, imag) pair for unknown i of a
// complex (AC) solve; zero for a real-only System or an out-of-range i.
func (m *System) GetComplexSolution(i int) (float64, float64) {
	if !m.cfg.Complex || i <= 0 || i > m.Size {
		return 0, 0
	}
	if m.cfg.SeparatedComplexVectors {
		return m.solution[i], m.solutionImag[i]
	}
	return m.solution[2*i], m.solution[2*i+1]
}

func (m *System) Destroy() {
	if m.sparse != nil {
		m.sparse.Destroy()
	}
}
