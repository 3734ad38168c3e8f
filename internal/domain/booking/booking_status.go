package booking

import "fmt"

// PoolStatus is the lifecycle state of a shared booking pool.
type PoolStatus string

const (
	StatusUninitiated PoolStatus = "uninitiated"
	StatusActive      PoolStatus = "active"
	StatusFinalized   PoolStatus = "finalized"
)

// successor holds the only status each non-terminal status may move to.
// Pools never go backwards and are never cancelled.
var successor = map[PoolStatus]PoolStatus{
	StatusUninitiated: StatusActive,
	StatusActive:      StatusFinalized,
}

// IsValid reports whether s is a known pool status.
func (s PoolStatus) IsValid() bool {
	switch s {
	case StatusUninitiated, StatusActive, StatusFinalized:
		return true
	}
	return false
}

// CanTransitionTo reports whether target directly follows s.
func (s PoolStatus) CanTransitionTo(target PoolStatus) bool {
	next, ok := successor[s]
	return ok && next == target
}

// IsTerminal reports whether s has no successor. Unknown statuses are terminal.
func (s PoolStatus) IsTerminal() bool {
	_, ok := successor[s]
	return !ok
}

func (s PoolStatus) String() string { return string(s) }

// ParsePoolStatus converts a stored status back into a PoolStatus.
func ParsePoolStatus(s string) (PoolStatus, error) {
	status := PoolStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid pool status: %s", s)
	}
	return status, nil
}
