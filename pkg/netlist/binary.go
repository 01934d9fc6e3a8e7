// Package netlist implements the engine's persisted circuit format (§6):
// a fixed-size little-endian binary encoding plus a human-readable JSON
// mirror, both operating on pkg/circuit.Circuit directly (the teacher's
// text-netlist Element/parser idiom doesn't apply here - this format has
// no directive grammar to parse, only a fixed record layout to read).
package netlist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/anton-oss/circuitsim/pkg/circuit"
)

// Magic and Version identify the binary format (§6).
const (
	Magic          uint32 = 0x43495243 // "CIRC"
	Version        uint32 = 1
	MaxSupportedVersion = Version
)

type fileHeader struct {
	Magic         uint32
	Version       uint32
	NumComponents int32
}

// Save writes c to w in the §6 binary layout.
func Save(w io.Writer, c *circuit.Circuit) error {
	bw := bufio.NewWriter(w)

	components := c.Components()
	hdr := fileHeader{Magic: Magic, Version: Version, NumComponents: int32(len(components))}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("netlist: write header: %w", err)
	}
	for _, comp := range components {
		rec := toRecord(comp)
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("netlist: write component %s: %w", comp.Name, err)
		}
	}

	nodes := c.Nodes()
	if err := binary.Write(bw, binary.LittleEndian, int32(len(nodes))); err != nil {
		return fmt.Errorf("netlist: write node count: %w", err)
	}
	groundID, hasGround := c.GroundNodeID()
	for _, n := range nodes {
		rec := nodeRecord{ID: int32(n.ID), X: float32(n.X), Y: float32(n.Y)}
		if n.IsGround || (hasGround && n.ID == groundID) {
			rec.IsGround = 1
		}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("netlist: write node %d: %w", n.ID, err)
		}
	}

	wires := c.Wires()
	if err := binary.Write(bw, binary.LittleEndian, int32(len(wires))); err != nil {
		return fmt.Errorf("netlist: write wire count: %w", err)
	}
	for _, wire := range wires {
		rec := wireRecord{Start: int32(wire.Start), End: int32(wire.End)}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("netlist: write wire: %w", err)
		}
	}

	return bw.Flush()
}

// Load reads a circuit.Circuit back from r, rejecting anything newer than
// this engine understands (UnsupportedVersion) or structurally broken
// (CorruptNetlist), per §7. A failed Load never mutates any circuit the
// caller already has loaded - it returns an error and a nil circuit,
// leaving that decision to the caller.
func Load(r io.Reader, name string) (*circuit.Circuit, error) {
	br := bufio.NewReader(r)

	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("netlist: %w: reading header: %v", simerr.ErrCorruptNetlist, err)
	}
	if hdr.Magic != Magic {
		return nil, fmt.Errorf("netlist: %w: bad magic %#x", simerr.ErrCorruptNetlist, hdr.Magic)
	}
	if hdr.Version > MaxSupportedVersion {
		return nil, fmt.Errorf("netlist: %w: file version %d, engine supports up to %d", simerr.ErrUnsupportedVersion, hdr.Version, MaxSupportedVersion)
	}
	if hdr.NumComponents < 0 {
		return nil, fmt.Errorf("netlist: %w: negative component count %d", simerr.ErrCorruptNetlist, hdr.NumComponents)
	}

	c := circuit.New(name)

	records := make([]componentRecord, hdr.NumComponents)
	for i := range records {
		if err := binary.Read(br, binary.LittleEndian, &records[i]); err != nil {
			return nil, fmt.Errorf("netlist: %w: reading component %d: %v", simerr.ErrCorruptNetlist, i, err)
		}
	}

	var numNodes int32
	if err := binary.Read(br, binary.LittleEndian, &numNodes); err != nil {
		return nil, fmt.Errorf("netlist: %w: reading node count: %v", simerr.ErrCorruptNetlist, err)
	}
	if numNodes < 0 {
		return nil, fmt.Errorf("netlist: %w: negative node count %d", simerr.ErrCorruptNetlist, numNodes)
	}

	nodeRecs := make([]nodeRecord, numNodes)
	idToAllocated := make(map[int]int, numNodes)
	for i := range nodeRecs {
		if err := binary.Read(br, binary.LittleEndian, &nodeRecs[i]); err != nil {
			return nil, fmt.Errorf("netlist: %w: reading node %d: %v", simerr.ErrCorruptNetlist, i, err)
		}
		rec := nodeRecs[i]
		allocated := c.AddNode(float64(rec.X), float64(rec.Y))
		idToAllocated[int(rec.ID)] = allocated
		if rec.IsGround != 0 {
			if err := c.SetGround(allocated); err != nil {
				return nil, fmt.Errorf("netlist: %w: %v", simerr.ErrCorruptNetlist, err)
			}
		}
	}

	var numWires int32
	if err := binary.Read(br, binary.LittleEndian, &numWires); err != nil {
		return nil, fmt.Errorf("netlist: %w: reading wire count: %v", simerr.ErrCorruptNetlist, err)
	}
	if numWires < 0 {
		return nil, fmt.Errorf("netlist: %w: negative wire count %d", simerr.ErrCorruptNetlist, numWires)
	}

	for i := int32(0); i < numWires; i++ {
		var rec wireRecord
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("netlist: %w: reading wire %d: %v", simerr.ErrCorruptNetlist, i, err)
		}
		start, ok1 := idToAllocated[int(rec.Start)]
		end, ok2 := idToAllocated[int(rec.End)]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("netlist: %w: wire %d references unknown node", simerr.ErrCorruptNetlist, i)
		}
		if err := c.AddWire(start, end); err != nil {
			return nil, fmt.Errorf("netlist: %w: %v", simerr.ErrCorruptNetlist, err)
		}
	}

	for i, rec := range records {
		comp := fromRecord(rec)
		for j, t := range comp.Terminals {
			allocated, ok := idToAllocated[t]
			if !ok {
				return nil, fmt.Errorf("netlist: %w: component %d references unknown node %d", simerr.ErrCorruptNetlist, i, t)
			}
			comp.Terminals[j] = allocated
		}
		if err := c.AddComponent(comp); err != nil {
			return nil, fmt.Errorf("netlist: %w: component %d: %v", simerr.ErrCorruptNetlist, i, err)
		}
	}

	return c, nil
}
