package domain

import (
	"fmt"
	"strings"
)

// SVAS is the State Variable Assignment Strategy: how a data variable's value
// relates to session Memory across messages.
type SVAS int

const (
	// Ephemeral learns on parse and regenerates on specialize, memorizing both.
	Ephemeral SVAS = iota
	// Constant never changes; parse compares, specialize reuses.
	Constant
	// Persistent is learned once and then held.
	Persistent
	// Volatile is never memorized.
	Volatile
)

func (s SVAS) String() string {
	switch s {
	case Constant:
		return "constant"
	case Persistent:
		return "persistent"
	case Ephemeral:
		return "ephemeral"
	case Volatile:
		return "volatile"
	default:
		return fmt.Sprintf("svas(%d)", int(s))
	}
}

func ParseSVAS(raw string) (SVAS, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "constant":
		return Constant, nil
	case "persistent":
		return Persistent, nil
	case "ephemeral", "":
		return Ephemeral, nil
	case "volatile":
		return Volatile, nil
	default:
		return 0, fmt.Errorf("domain: unknown svas %q", raw)
	}
}
