package netlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// unitMap mirrors the teacher's SPICE engineering-suffix table
// (pkg/netlist/parser.go's unitMap), kept for parsing component values a
// human types at a CLI or editor prompt - the persisted format itself
// always stores plain float64s, never suffixed strings.
var unitMap = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

var valuePattern = regexp.MustCompile(`^([-+]?\d*\.?\d+)(meg|[TGMKkmunpf])?s?$`)

// ParseEngineeringValue parses a SPICE-style engineering-suffixed number
// ("4.7k", "100n") into its float64 value, the same grammar the teacher's
// ParseValue accepts.
func ParseEngineeringValue(val string) (float64, error) {
	matches := valuePattern.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("netlist: invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] != "" {
		if multiplier, ok := unitMap[matches[2]]; ok {
			num *= multiplier
		}
	}
	return num, nil
}
