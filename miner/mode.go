package miner

import (
	"fmt"
	"strings"
)

// Mode selects when blocks are produced
type Mode int

const (
	// Auto mines a block right after every accepted transaction
	Auto Mode = iota
	// Manual mines only on explicit requests
	Manual
	// Interval mines on a fixed period
	Interval
)

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Manual:
		return "manual"
	case Interval:
		return "interval"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name from the config file
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "manual":
		return Manual, nil
	case "interval":
		return Interval, nil
	default:
		return Manual, fmt.Errorf("unknown mining mode %q", s)
	}
}
