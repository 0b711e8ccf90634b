package orchestration

import (
	"fmt"
	"strings"

	"fulfillment/internal/pkg/errs"
)

// FailurePolicy decides what happens to an order whose delivery assignment failed.
type FailurePolicy string

const (
	// PolicyRedispatch offers the order to another agent while it is still in the store.
	PolicyRedispatch FailurePolicy = "redispatch"
	// PolicyCancelRefund gives up on the order and returns the customer's money.
	PolicyCancelRefund FailurePolicy = "cancel_refund"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRedispatch, PolicyCancelRefund:
		return p, nil
	case "":
		return PolicyRedispatch, nil
	default:
		return "", errs.NewValueIsInvalidErrorWithCause("failure policy", fmt.Errorf("%q is not a known policy", s))
	}
}

func (p FailurePolicy) String() string {
	return string(p)
}
