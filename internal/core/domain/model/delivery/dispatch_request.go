package delivery

import (
	"errors"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

// DispatchRequest remembers an order that found no free agent and when to try again.
// One request exists per order; it is removed once an agent is assigned.
type DispatchRequest struct {
	orderID       kernel.UUID
	storeID       kernel.UUID
	attempts      int
	nextAttemptAt time.Time
	lastError     string
	exhausted     bool
	createdAt     time.Time
	version       kernel.Version
}

func NewDispatchRequest(orderID, storeID kernel.UUID, at time.Time) (*DispatchRequest, error) {
	if err := errors.Join(orderID.Validate(), storeID.Validate()); err != nil {
		return nil, err
	}
	return &DispatchRequest{
		orderID:       orderID,
		storeID:       storeID,
		nextAttemptAt: at.UTC(),
		createdAt:     at.UTC(),
	}, nil
}

func RestoreDispatchRequest(
	orderID, storeID kernel.UUID,
	attempts int,
	nextAttemptAt time.Time,
	lastError string,
	exhausted bool,
	createdAt time.Time,
	version int,
) (*DispatchRequest, error) {
	if err := errors.Join(orderID.Validate(), storeID.Validate()); err != nil {
		return nil, err
	}
	if attempts < 0 {
		return nil, errs.NewValueIsOutOfRangeError("attempts", attempts, 0, "unbounded")
	}
	return &DispatchRequest{
		orderID:       orderID,
		storeID:       storeID,
		attempts:      attempts,
		nextAttemptAt: nextAttemptAt.UTC(),
		lastError:     lastError,
		exhausted:     exhausted,
		createdAt:     createdAt.UTC(),
		version:       kernel.RestoreVersion(version),
	}, nil
}

func (r *DispatchRequest) OrderID() kernel.UUID     { return r.orderID }
func (r *DispatchRequest) StoreID() kernel.UUID     { return r.storeID }
func (r *DispatchRequest) Attempts() int            { return r.attempts }
func (r *DispatchRequest) NextAttemptAt() time.Time { return r.nextAttemptAt }
func (r *DispatchRequest) LastError() string        { return r.lastError }
func (r *DispatchRequest) Exhausted() bool          { return r.exhausted }
func (r *DispatchRequest) CreatedAt() time.Time     { return r.createdAt }
func (r *DispatchRequest) Version() int             { return r.version.Current() }

func (r *DispatchRequest) AdvanceVersion() (int, int) {
	return r.version.Advance()
}

func (r *DispatchRequest) IsDue(now time.Time) bool {
	return !r.exhausted && !now.Before(r.nextAttemptAt)
}

// RecordFailure counts a failed dispatch attempt. When maxAttempts is reached the
// request is exhausted and no further attempt is scheduled; otherwise the next
// attempt is due after delay.
func (r *DispatchRequest) RecordFailure(cause error, delay time.Duration, maxAttempts int, now time.Time) {
	r.attempts++
	if cause != nil {
		r.lastError = cause.Error()
	}
	if r.attempts >= maxAttempts {
		r.exhausted = true
		return
	}
	r.nextAttemptAt = now.UTC().Add(delay)
}
