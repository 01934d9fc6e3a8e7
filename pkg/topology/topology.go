// Package topology resolves a circuit.Circuit's wires into the dense node
// numbering the solver needs: a union-find coalesces every wire-connected
// node into one electrical class, the ground class is promoted to index 0,
// and every other class gets a stable 1..k index.
package topology

import (
	"math"
	"sort"

	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// NodeMap is the resolved mapping from a circuit.Node id to its MNA matrix
// row/column. Ground-class nodes map to 0.
type NodeMap struct {
	index   map[int]int // node id -> matrix index (0 = ground)
	classOf map[int]int // node id -> union-find class root, pre-renumbering
	size    int         // number of non-ground unknowns
}

// Size returns the number of non-ground node unknowns.
func (nm *NodeMap) Size() int { return nm.size }

// Index returns the matrix row/column for nodeID (0 for ground).
func (nm *NodeMap) Index(nodeID int) int { return nm.index[nodeID] }

type unionFind struct {
	parent map[int]int
	rank   map[int]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int]int), rank: make(map[int]int)}
}

func (u *unionFind) find(x int) int {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// Build resolves c's wires into a NodeMap. Every node is its own class
// unless a wire coalesces it with another; the class containing the
// designated ground node (or, absent one, the lowest-id node of the
// largest class) becomes matrix index 0. Non-ground classes receive
// indices 1..k in ascending order of their lowest member node id, so
// Build is deterministic and idempotent across repeated calls on an
// unchanged circuit.
func Build(c *circuit.Circuit) *NodeMap {
	uf := newUnionFind()
	for _, n := range c.Nodes() {
		uf.find(n.ID) // register every node, even wire-less ones
	}
	for _, w := range c.Wires() {
		uf.union(w.Start, w.End)
	}

	classMembers := make(map[int][]int)
	for _, n := range c.Nodes() {
		root := uf.find(n.ID)
		classMembers[root] = append(classMembers[root], n.ID)
	}

	groundRoot := -1
	if gid, ok := c.GroundNodeID(); ok {
		if _, known := classMembers[uf.find(gid)]; known {
			groundRoot = uf.find(gid)
		}
	}
	if groundRoot == -1 {
		// No ground designated (or it references an unknown node): fall
		// back to the largest class, breaking ties on lowest member id.
		bestSize, bestRoot, bestMin := -1, -1, int(^uint(0)>>1)
		for root, members := range classMembers {
			min := members[0]
			for _, m := range members {
				if m < min {
					min = m
				}
			}
			if len(members) > bestSize || (len(members) == bestSize && min < bestMin) {
				bestSize, bestRoot, bestMin = len(members), root, min
			}
		}
		groundRoot = bestRoot
	}

	roots := make([]int, 0, len(classMembers))
	minMember := make(map[int]int, len(classMembers))
	for root, members := range classMembers {
		min := members[0]
		for _, m := range members {
			if m < min {
				min = m
			}
		}
		minMember[root] = min
		if root != groundRoot {
			roots = append(roots, root)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return minMember[roots[i]] < minMember[roots[j]] })

	nm := &NodeMap{index: make(map[int]int), classOf: make(map[int]int)}
	if groundRoot != -1 {
		for _, id := range classMembers[groundRoot] {
			nm.index[id] = 0
			nm.classOf[id] = groundRoot
		}
	}
	for i, root := range roots {
		idx := i + 1
		for _, id := range classMembers[root] {
			nm.index[id] = idx
			nm.classOf[id] = root
		}
	}
	nm.size = len(roots)
	return nm
}

// wirePropagationPasses caps the sign-consistency fixup loop below.
const wirePropagationPasses = 10

// WireCurrents estimates a display-only current for every wire in c,
// positive in the wire's Start->End direction. It is a visualization
// heuristic, never a physical KCL solution, and must never feed back
// into the solver.
//
// First, currents through resistive/diode/LED/switch components are
// computed directly from the solved node voltages (I = dV/R for
// resistors and closed switches, the ideal knee model for the diode
// family); the largest magnitude becomes Icircuit. Each wire is then
// seeded: endpoints at different voltages take +-Icircuit by polarity,
// equipotential wires touching a source's + terminal or the ground
// class take a direction from that, and the rest start at 0 and are
// fixed in up to wirePropagationPasses passes that carry the current
// sign convention across shared nodes.
func WireCurrents(c *circuit.Circuit, nm *NodeMap, voltOf func(nodeID int) float64) []float64 {
	wires := c.Wires()
	out := make([]float64, len(wires))
	if len(wires) == 0 {
		return out
	}

	iCircuit := maxDeviceCurrent(c, voltOf)
	if iCircuit == 0 {
		return out
	}

	plus, minus := sourceTerminals(c)
	assigned := make([]bool, len(wires))

	for i, w := range wires {
		va, vb := voltOf(w.Start), voltOf(w.End)
		switch {
		case math.Abs(va-vb) > 1e-9:
			// Polarity: current flows from the higher potential.
			if va > vb {
				out[i] = iCircuit
			} else {
				out[i] = -iCircuit
			}
			assigned[i] = true
		case plus[w.Start]:
			out[i] = iCircuit // away from the source's + terminal
			assigned[i] = true
		case plus[w.End]:
			out[i] = -iCircuit
			assigned[i] = true
		case minus[w.End] || nm.Index(w.End) == 0:
			out[i] = iCircuit // toward ground / the source's return
			assigned[i] = true
		case minus[w.Start] || nm.Index(w.Start) == 0:
			out[i] = -iCircuit
			assigned[i] = true
		}
	}

	// Fixup passes: an unassigned wire adopts the flow continuity of an
	// assigned wire it shares a node with (current into the shared node
	// equals current out of it).
	for pass := 0; pass < wirePropagationPasses; pass++ {
		changed := false
		for i, w := range wires {
			if assigned[i] {
				continue
			}
			for j, n := range wires {
				if !assigned[j] || (i == j) {
					continue
				}
				var shared int
				switch {
				case n.End == w.Start || n.End == w.End:
					shared = n.End
				case n.Start == w.Start || n.Start == w.End:
					shared = n.Start
				default:
					continue
				}
				inflow := out[j]
				if n.Start == shared {
					inflow = -out[j]
				}
				if w.Start == shared {
					out[i] = inflow
				} else {
					out[i] = -inflow
				}
				assigned[i] = true
				changed = true
				break
			}
		}
		if !changed {
			break
		}
	}

	return out
}

// maxDeviceCurrent scans the resistive/diode/LED/switch components for
// the largest-magnitude current implied by the solved node voltages.
func maxDeviceCurrent(c *circuit.Circuit, voltOf func(nodeID int) float64) float64 {
	max := 0.0
	for _, comp := range c.Components() {
		if len(comp.Terminals) < 2 {
			continue
		}
		dv := voltOf(comp.Terminals[0]) - voltOf(comp.Terminals[1])

		var i float64
		switch comp.Kind {
		case circuit.KindResistor:
			r := comp.Params["resistance"]
			if r != 0 {
				i = dv / r
			}
		case circuit.KindSwitch, circuit.KindPushButton, circuit.KindRelay:
			r := comp.Params["off_resistance"]
			if comp.Params["closed"] != 0 {
				r = comp.Params["on_resistance"]
			}
			if r != 0 {
				i = dv / r
			}
		case circuit.KindDiode, circuit.KindZenerDiode, circuit.KindSchottkyDiode, circuit.KindLED:
			// Ideal knee model: conducts through 1 ohm beyond Vf.
			vf, ok := comp.Params["forward_voltage"]
			if !ok {
				vf = 0.7
			}
			if dv > vf {
				i = dv - vf
			}
		}
		if a := math.Abs(i); a > max {
			max = a
		}
	}
	return max
}

// sourceTerminals collects the node ids of every independent source's +
// and - terminals, the direction hints the equipotential seeding uses.
func sourceTerminals(c *circuit.Circuit) (plus, minus map[int]bool) {
	plus, minus = make(map[int]bool), make(map[int]bool)
	for _, comp := range c.Components() {
		switch comp.Kind {
		case circuit.KindVoltageSourceDC, circuit.KindVoltageSourceAC,
			circuit.KindSquareWaveSource, circuit.KindTriangleWaveSource,
			circuit.KindSawWaveSource, circuit.KindNoiseSource,
			circuit.KindCurrentSourceDC:
			if len(comp.Terminals) == 2 {
				plus[comp.Terminals[0]] = true
				minus[comp.Terminals[1]] = true
			}
		}
	}
	return plus, minus
}
