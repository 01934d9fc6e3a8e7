package circuit

import (
	"fmt"

	"github.com/anton-oss/circuitsim/internal/consts"
)

// Circuit owns the persisted data model: the nodes, wires, components and
// probes a host assembles through its editor, independent of any solver.
// pkg/topology and internal/mna consume a Circuit to build the MNA system;
// they never mutate it directly, so Modified is the only signal they need
// to know a rebuild is due.
type Circuit struct {
	name string

	nodes      map[int]*Node
	nextNodeID int
	groundID   int
	hasGround  bool

	wires      []Wire
	components []*Component
	probes     []*Probe

	modified uint64
}

// New returns an empty, named circuit.
func New(name string) *Circuit {
	return &Circuit{
		name:  name,
		nodes: make(map[int]*Node),
	}
}

func (c *Circuit) Name() string { return c.name }

// Modified returns a counter incremented on every structural change
// (node/wire/component/probe add, ground designation). Callers that cache a
// topology or MNA layout compare this against their last-seen value to
// decide whether a rebuild is due.
func (c *Circuit) Modified() uint64 { return c.modified }

func (c *Circuit) touch() { c.modified++ }

// AddNode creates a new node and returns its id.
func (c *Circuit) AddNode(x, y float64) int {
	id := c.nextNodeID
	c.nextNodeID++
	c.nodes[id] = &Node{ID: id, X: x, Y: y}
	if !c.hasGround {
		c.groundID = id
		c.hasGround = true
		c.nodes[id].IsGround = true
	}
	c.touch()
	return id
}

// SetGround designates nodeID as the reference node, clearing any previous
// designation. It is a no-op, without touching Modified, if nodeID already
// carries the designation.
func (c *Circuit) SetGround(nodeID int) error {
	n, ok := c.nodes[nodeID]
	if !ok {
		return fmt.Errorf("circuit: unknown node %d", nodeID)
	}
	if c.hasGround && c.groundID == nodeID {
		return nil
	}
	if c.hasGround {
		if old, ok := c.nodes[c.groundID]; ok {
			old.IsGround = false
		}
	}
	n.IsGround = true
	c.groundID = nodeID
	c.hasGround = true
	c.touch()
	return nil
}

// GroundNodeID returns the designated ground node and whether one exists.
func (c *Circuit) GroundNodeID() (int, bool) {
	return c.groundID, c.hasGround
}

// Node returns node id, or nil if it doesn't exist.
func (c *Circuit) Node(id int) *Node { return c.nodes[id] }

// Nodes returns every node, in no particular order.
func (c *Circuit) Nodes() []*Node {
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// AddWire coalesces start and end with zero resistance. Both nodes must
// already exist.
func (c *Circuit) AddWire(start, end int) error {
	if _, ok := c.nodes[start]; !ok {
		return fmt.Errorf("circuit: unknown node %d", start)
	}
	if _, ok := c.nodes[end]; !ok {
		return fmt.Errorf("circuit: unknown node %d", end)
	}
	c.wires = append(c.wires, Wire{Start: start, End: end})
	c.touch()
	return nil
}

// Wires returns the circuit's wires.
func (c *Circuit) Wires() []Wire { return c.wires }

// SetWireCurrent records the post-solve display current for wire i (see
// topology.WireCurrents). It never marks the circuit modified: display
// estimates don't invalidate a cached topology or MNA layout.
func (c *Circuit) SetWireCurrent(i int, current float64) {
	if i < 0 || i >= len(c.wires) {
		return
	}
	c.wires[i].Current = current
}

// AddComponent appends comp after checking every terminal references a live
// node, per the invariant that a Component never dangles.
func (c *Circuit) AddComponent(comp *Component) error {
	for _, t := range comp.Terminals {
		if _, ok := c.nodes[t]; !ok {
			return fmt.Errorf("circuit: component %s references unknown node %d", comp.Name, t)
		}
	}
	c.components = append(c.components, comp)
	c.touch()
	return nil
}

// Components returns every component, in insertion order.
func (c *Circuit) Components() []*Component { return c.components }

// AddProbe attaches a new oscilloscope channel to nodeID, enforcing the
// engine's MaxProbes ceiling.
func (c *Circuit) AddProbe(p *Probe) error {
	if len(c.probes) >= consts.MaxProbes {
		return fmt.Errorf("circuit: probe limit %d reached", consts.MaxProbes)
	}
	if _, ok := c.nodes[p.NodeID]; !ok {
		return fmt.Errorf("circuit: probe references unknown node %d", p.NodeID)
	}
	c.probes = append(c.probes, p)
	c.touch()
	return nil
}

// Probes returns every attached probe, in insertion order.
func (c *Circuit) Probes() []*Probe { return c.probes }

// Clone returns an independent deep copy of c: every node, wire,
// component (including its Params/Sweeps maps and thermal state) and
// probe is copied, never aliased. This is what lets the parametric-sweep
// and Monte-Carlo outer loops (§5) hand each worker a private Simulator
// with no shared mutable state crossing the boundary.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{
		name:       c.name,
		nodes:      make(map[int]*Node, len(c.nodes)),
		nextNodeID: c.nextNodeID,
		groundID:   c.groundID,
		hasGround:  c.hasGround,
		wires:      append([]Wire(nil), c.wires...),
		probes:     make([]*Probe, len(c.probes)),
		modified:   c.modified,
	}
	for id, n := range c.nodes {
		cp := *n
		out.nodes[id] = &cp
	}
	for i, p := range c.probes {
		cp := *p
		out.probes[i] = &cp
	}
	out.components = make([]*Component, len(c.components))
	for i, comp := range c.components {
		out.components[i] = comp.clone()
	}
	return out
}

// clone deep-copies a single component.
func (comp *Component) clone() *Component {
	cp := *comp
	cp.Terminals = append([]int(nil), comp.Terminals...)
	cp.CoupledInductors = append([]string(nil), comp.CoupledInductors...)

	cp.Params = make(map[string]float64, len(comp.Params))
	for k, v := range comp.Params {
		cp.Params[k] = v
	}
	cp.Sweeps = make(map[string]SweepConfig, len(comp.Sweeps))
	for k, v := range comp.Sweeps {
		cp.Sweeps[k] = v
	}
	if comp.Thermal != nil {
		th := *comp.Thermal
		cp.Thermal = &th
	}
	return &cp
}
