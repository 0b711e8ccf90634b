package payment

import (
	"fmt"

	"fulfillment/internal/pkg/errs"
)

// Status of a single payment:
//
//	Pending ──> Processing ──> Success ──> PartiallyRefunded ──> Refunded
//	   │            │
//	   │            └────────> Failed
//	   ├─────────────────────> Failed
//	   ├─────────────────────> Success (wallet, cash on delivery)
//	   └─────────────────────> Cancelled
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusSuccess
	StatusFailed
	StatusCancelled
	StatusRefunded
	StatusPartiallyRefunded
)

var statusNames = map[Status]string{
	StatusPending:           "pending",
	StatusProcessing:        "processing",
	StatusSuccess:           "success",
	StatusFailed:            "failed",
	StatusCancelled:         "cancelled",
	StatusRefunded:          "refunded",
	StatusPartiallyRefunded: "partially_refunded",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("payment status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// IsOpen reports whether the payment can still succeed or fail.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusProcessing
}

// IsCaptured reports whether money was collected, regardless of later refunds.
func (s Status) IsCaptured() bool {
	return s == StatusSuccess || s == StatusPartiallyRefunded || s == StatusRefunded
}
