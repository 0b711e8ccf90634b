package order

import (
	"fmt"

	"fulfillment/internal/pkg/errs"
)

// PaymentStatus is the order-level view of money collected for it.
type PaymentStatus int

const (
	PaymentUnknown PaymentStatus = iota
	PaymentPending
	PaymentPaid
	PaymentFailed
	PaymentRefunded
	PaymentPartiallyRefunded
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentPending:           "pending",
	PaymentPaid:              "paid",
	PaymentFailed:            "failed",
	PaymentRefunded:          "refunded",
	PaymentPartiallyRefunded: "partially_refunded",
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s PaymentStatus) Validate() error {
	if _, ok := paymentStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("payment status", fmt.Errorf("%d is not a valid payment status", s))
	}
	return nil
}

// IsSettled reports whether money has been captured for the order, refunded or not.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentPaid || s == PaymentPartiallyRefunded || s == PaymentRefunded
}
