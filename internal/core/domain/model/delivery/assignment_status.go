package delivery

import (
	"fmt"

	"fulfillment/internal/pkg/errs"
)

// AssignmentStatus is the lifecycle of one agent serving one order:
//
//	Assigned ──> Accepted ──> PickedUp ──> InTransit ──> Delivered
//	   │            │            │            │
//	   └────────────┴────────────┴────────────┴──> Failed | Cancelled
//
// Delivered, Failed and Cancelled are terminal.
type AssignmentStatus int

const (
	AssignmentUnknown AssignmentStatus = iota
	AssignmentAssigned
	AssignmentAccepted
	AssignmentPickedUp
	AssignmentInTransit
	AssignmentDelivered
	AssignmentFailed
	AssignmentCancelled
)

var assignmentStatusNames = map[AssignmentStatus]string{
	AssignmentAssigned:  "assigned",
	AssignmentAccepted:  "accepted",
	AssignmentPickedUp:  "picked_up",
	AssignmentInTransit: "in_transit",
	AssignmentDelivered: "delivered",
	AssignmentFailed:    "failed",
	AssignmentCancelled: "cancelled",
}

func (s AssignmentStatus) String() string {
	if name, ok := assignmentStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s AssignmentStatus) Validate() error {
	if _, ok := assignmentStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("assignment status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	for status, name := range assignmentStatusNames {
		if name == s {
			return status, nil
		}
	}
	return AssignmentUnknown, errs.NewValueIsInvalidErrorWithCause("assignment status", fmt.Errorf("%q is not a valid status", s))
}

func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentDelivered || s == AssignmentFailed || s == AssignmentCancelled
}

// nextLeg returns the only status a leg completion may move to.
func (s AssignmentStatus) nextLeg() (AssignmentStatus, bool) {
	switch s {
	case AssignmentAccepted:
		return AssignmentPickedUp, true
	case AssignmentPickedUp:
		return AssignmentInTransit, true
	case AssignmentInTransit:
		return AssignmentDelivered, true
	default:
		return AssignmentUnknown, false
	}
}
