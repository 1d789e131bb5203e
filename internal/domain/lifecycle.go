package domain

import "fmt"

// Status is a report's lifecycle state. The sequence is strictly forward:
// open < acknowledged < in_progress < resolved < closed.
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusClosed       Status = "closed"
)

var Statuses = []Status{StatusOpen, StatusAcknowledged, StatusInProgress, StatusResolved, StatusClosed}

var statusRank = map[Status]int{
	StatusOpen:         0,
	StatusAcknowledged: 1,
	StatusInProgress:   2,
	StatusResolved:     3,
	StatusClosed:       4,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transition leaves the state.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

// Resolvable reports whether the owner may rate the report in this state.
func (s Status) Resolvable() bool {
	return s == StatusResolved || s == StatusClosed
}

// CanTransition validates one lifecycle step. Only the immediate successor is
// legal; anything else, including every backward move, fails with
// ErrInvalidTransition naming both states.
func CanTransition(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: unknown requested status %q", ErrInvalidTransition, to)
	}
	if statusRank[to] != statusRank[from]+1 {
		return fmt.Errorf("%w: cannot move from %q to %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanClose reports whether the role may archive a resolved report. Closing is
// restricted beyond the general editStatus capability.
func CanClose(role Role) bool {
	return role == RoleAdmin || role == RoleDepartmentHead
}
