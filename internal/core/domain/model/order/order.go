package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/cart"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

const (
	// NumberPrefix starts every order number.
	NumberPrefix = "ORD"
	// NumberSuffixLength is the count of random characters after the timestamp.
	NumberSuffixLength = 6

	// CashOnDeliveryMethod lets an order be confirmed before money is collected.
	CashOnDeliveryMethod = "cash_on_delivery"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order instance was not created through
	// the NewOrder or RestoreOrder factory methods.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")
)

// Order is the aggregate root of a customer purchase at one store. It owns its line
// items and its audit history; payments and delivery assignments are separate
// aggregates referenced weakly by id.
//
// Order follows these invariants:
//   - total = subtotal + deliveryFee + tax - discount, fixed at creation
//   - status only moves along the transition table in Status
//   - every status change appends exactly one HistoryEntry
//   - at most one active payment and one active assignment are referenced
type Order struct {
	id                  kernel.UUID
	number              string
	customerID          kernel.UUID
	storeID             kernel.UUID
	address             cart.Address
	lines               []cart.LineItem
	subtotal            decimal.Decimal
	deliveryFee         decimal.Decimal
	tax                 decimal.Decimal
	discount            decimal.Decimal
	total               decimal.Decimal
	specialInstructions string

	status             Status
	paymentStatus      PaymentStatus
	paymentMethod      string
	activePaymentID    *kernel.UUID
	activeAssignmentID *kernel.UUID
	cancellationReason string

	createdAt        time.Time
	confirmedAt      *time.Time
	readyAt          *time.Time
	outForDeliveryAt *time.Time
	deliveredAt      *time.Time
	cancelledAt      *time.Time

	historySequence int
	pendingHistory  []HistoryEntry

	version       kernel.Version
	events        kernel.EventRecorder
	isConstructed bool
}

// NewOrder places an order from a validated cart snapshot. The order starts Pending
// with payment Pending, and the first history entry records the placing actor.
//
// Example:
//
//	number := kernel.NewReference(order.NumberPrefix, now, order.NumberSuffixLength)
//	o, err := order.NewOrder(kernel.NewUUID(), number, snapshot, customer, now)
//	if err != nil {
//	    // Handle validation error
//	}
func NewOrder(id kernel.UUID, number string, snapshot cart.Snapshot, actor kernel.Actor, at time.Time) (*Order, error) {
	if err := errors.Join(
		id.Validate(),
		validateNumber(number),
		snapshot.Validate(),
		actor.Validate(),
	); err != nil {
		return nil, err
	}

	o := &Order{
		id:                  id,
		number:              number,
		customerID:          snapshot.CustomerID(),
		storeID:             snapshot.StoreID(),
		address:             snapshot.Address(),
		lines:               snapshot.Lines(),
		subtotal:            snapshot.Subtotal(),
		deliveryFee:         snapshot.DeliveryFee(),
		tax:                 snapshot.Tax(),
		discount:            snapshot.Discount(),
		total:               snapshot.Total(),
		specialInstructions: snapshot.SpecialInstructions(),
		status:              Pending,
		paymentStatus:       PaymentPending,
		createdAt:           at.UTC(),
		isConstructed:       true,
	}
	if err := o.checkTotals(); err != nil {
		return nil, err
	}

	o.appendHistory(Unknown, Pending, actor, "order placed", false, at)
	o.events.Record(CreatedEvent{
		OrderID:    o.id,
		Number:     o.number,
		CustomerID: o.customerID,
		StoreID:    o.storeID,
		Total:      o.total,
		At:         o.createdAt,
	})
	return o, nil
}

// RestoreParams carries the persisted state of an order.
type RestoreParams struct {
	ID                  kernel.UUID
	Number              string
	CustomerID          kernel.UUID
	StoreID             kernel.UUID
	Address             cart.Address
	Lines               []cart.LineItem
	Subtotal            decimal.Decimal
	DeliveryFee         decimal.Decimal
	Tax                 decimal.Decimal
	Discount            decimal.Decimal
	Total               decimal.Decimal
	SpecialInstructions string
	Status              Status
	PaymentStatus       PaymentStatus
	PaymentMethod       string
	ActivePaymentID     *kernel.UUID
	ActiveAssignmentID  *kernel.UUID
	CancellationReason  string
	CreatedAt           time.Time
	ConfirmedAt         *time.Time
	ReadyAt             *time.Time
	OutForDeliveryAt    *time.Time
	DeliveredAt         *time.Time
	CancelledAt         *time.Time
	HistorySequence     int
	Version             int
}

// RestoreOrder rebuilds an order from persistence. No history entry or event is produced.
func RestoreOrder(p RestoreParams) (*Order, error) {
	if err := errors.Join(
		p.ID.Validate(),
		validateNumber(p.Number),
		p.CustomerID.Validate(),
		p.StoreID.Validate(),
		p.Status.Validate(),
		p.PaymentStatus.Validate(),
	); err != nil {
		return nil, err
	}

	o := &Order{
		id:                  p.ID,
		number:              p.Number,
		customerID:          p.CustomerID,
		storeID:             p.StoreID,
		address:             p.Address,
		lines:               append([]cart.LineItem(nil), p.Lines...),
		subtotal:            p.Subtotal,
		deliveryFee:         p.DeliveryFee,
		tax:                 p.Tax,
		discount:            p.Discount,
		total:               p.Total,
		specialInstructions: p.SpecialInstructions,
		status:              p.Status,
		paymentStatus:       p.PaymentStatus,
		paymentMethod:       p.PaymentMethod,
		activePaymentID:     p.ActivePaymentID,
		activeAssignmentID:  p.ActiveAssignmentID,
		cancellationReason:  p.CancellationReason,
		createdAt:           p.CreatedAt.UTC(),
		confirmedAt:         p.ConfirmedAt,
		readyAt:             p.ReadyAt,
		outForDeliveryAt:    p.OutForDeliveryAt,
		deliveredAt:         p.DeliveredAt,
		cancelledAt:         p.CancelledAt,
		historySequence:     p.HistorySequence,
		version:             kernel.RestoreVersion(p.Version),
		isConstructed:       true,
	}
	if err := o.checkTotals(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate ensures the Order instance was properly constructed.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.UUID                  { return o.id }
func (o *Order) Number() string                   { return o.number }
func (o *Order) CustomerID() kernel.UUID          { return o.customerID }
func (o *Order) StoreID() kernel.UUID             { return o.storeID }
func (o *Order) Address() cart.Address            { return o.address }
func (o *Order) Subtotal() decimal.Decimal        { return o.subtotal }
func (o *Order) DeliveryFee() decimal.Decimal     { return o.deliveryFee }
func (o *Order) Tax() decimal.Decimal             { return o.tax }
func (o *Order) Discount() decimal.Decimal        { return o.discount }
func (o *Order) Total() decimal.Decimal           { return o.total }
func (o *Order) SpecialInstructions() string      { return o.specialInstructions }
func (o *Order) Status() Status                   { return o.status }
func (o *Order) PaymentStatus() PaymentStatus     { return o.paymentStatus }
func (o *Order) PaymentMethod() string            { return o.paymentMethod }
func (o *Order) ActivePaymentID() *kernel.UUID    { return o.activePaymentID }
func (o *Order) ActiveAssignmentID() *kernel.UUID { return o.activeAssignmentID }
func (o *Order) CancellationReason() string       { return o.cancellationReason }
func (o *Order) CreatedAt() time.Time             { return o.createdAt }
func (o *Order) ConfirmedAt() *time.Time          { return o.confirmedAt }
func (o *Order) ReadyAt() *time.Time              { return o.readyAt }
func (o *Order) OutForDeliveryAt() *time.Time     { return o.outForDeliveryAt }
func (o *Order) DeliveredAt() *time.Time          { return o.deliveredAt }
func (o *Order) CancelledAt() *time.Time          { return o.cancelledAt }
func (o *Order) HistorySequence() int             { return o.historySequence }
func (o *Order) Version() int                     { return o.version.Current() }

func (o *Order) Lines() []cart.LineItem {
	return append([]cart.LineItem(nil), o.lines...)
}

func (o *Order) AdvanceVersion() (int, int) {
	return o.version.Advance()
}

// PendingHistory returns history entries not yet written to storage.
func (o *Order) PendingHistory() []HistoryEntry {
	return append([]HistoryEntry(nil), o.pendingHistory...)
}

// MarkHistoryPersisted is called by repositories once PendingHistory has been stored.
func (o *Order) MarkHistoryPersisted() {
	o.pendingHistory = nil
}

func (o *Order) DomainEvents() []kernel.DomainEvent {
	return o.events.Events()
}

func (o *Order) ClearDomainEvents() {
	o.events.Clear()
}

// Confirm moves a Pending order to Confirmed.
//
// This method enforces the following business rules:
//   - The order must be Pending
//   - Payment must be captured, unless the order is paid cash on delivery
//
// Committing the reserved inventory is the caller's job and must happen in the
// same transaction.
func (o *Order) Confirm(actor kernel.Actor, at time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	next, err := o.status.Confirm()
	if err != nil {
		return err
	}
	if o.paymentStatus != PaymentPaid && o.paymentMethod != CashOnDeliveryMethod {
		return errs.NewInvalidTransitionError("order", o.status, next)
	}

	ts := at.UTC()
	o.confirmedAt = &ts
	o.transition(next, actor, "order confirmed", false, at)
	return nil
}

// Advance moves the order forward along the fulfillment path.
//
// Only the immediate successor is accepted, and the actor's role must be allowed to
// perform the move:
//   - Processing, ReadyForPickup: store operator, admin or system
//   - OutForDelivery, Delivered: delivery agent, admin or system
//
// An admin may pass override=true to skip stages after Confirmed. The history entry
// is flagged as an override and carries the admin's note.
//
// Example:
//
//	err := o.Advance(order.ReadyForPickup, storeOperator, "packed", false, time.Now())
//	if errors.Is(err, errs.ErrInvalidTransition) {
//	    // not the next stage
//	}
func (o *Order) Advance(target Status, actor kernel.Actor, note string, override bool, at time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if override && !actor.IsAdmin() {
		return fmt.Errorf("%w: %s cannot override order transitions", errs.ErrNotPermitted, actor.Role())
	}

	next, err := o.status.Advance(target, override)
	if err != nil {
		return err
	}
	if !override {
		if err = checkRole(next, actor); err != nil {
			return err
		}
	}

	ts := at.UTC()
	switch next {
	case ReadyForPickup:
		o.readyAt = &ts
	case OutForDelivery:
		o.outForDeliveryAt = &ts
	case Delivered:
		o.deliveredAt = &ts
	}
	if override && strings.TrimSpace(note) == "" {
		note = "administrative override"
	}
	o.transition(next, actor, note, override, at)
	return nil
}

// Cancel moves the order to Cancelled. Allowed from Pending, Confirmed and Processing.
// Releasing inventory and refunding captured money are triggered by the caller.
func (o *Order) Cancel(actor kernel.Actor, reason string, at time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return errs.NewValueIsRequiredError("cancellation reason")
	}
	next, err := o.status.Cancel()
	if err != nil {
		return err
	}

	ts := at.UTC()
	o.cancelledAt = &ts
	o.cancellationReason = reason
	o.transition(next, actor, reason, false, at)
	return nil
}

// Refund moves a non-terminal order to Refunded on the failure path.
func (o *Order) Refund(actor kernel.Actor, reason string, at time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	next, err := o.status.Refund()
	if err != nil {
		return err
	}
	o.cancellationReason = reason
	o.transition(next, actor, reason, false, at)
	return nil
}

// AttachPayment records the payment currently collecting money for the order.
func (o *Order) AttachPayment(paymentID kernel.UUID, method string) error {
	if err := paymentID.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(method) == "" {
		return errs.NewValueIsRequiredError("payment method")
	}
	if o.status != Pending || o.paymentStatus.IsSettled() {
		return errs.NewInvalidTransitionError("order payment", o.paymentStatus, PaymentPending)
	}
	if o.activePaymentID != nil {
		return fmt.Errorf("%w: order %s already has active payment %s",
			errs.ErrInvalidTransition, o.number, o.activePaymentID)
	}

	o.activePaymentID = &paymentID
	o.paymentMethod = method
	o.paymentStatus = PaymentPending
	return nil
}

// MarkPaid records that paymentID captured the order total.
func (o *Order) MarkPaid(paymentID kernel.UUID) error {
	if !o.isActivePayment(paymentID) {
		return fmt.Errorf("%w: payment %s is not active on order %s", errs.ErrInvalidTransition, paymentID, o.number)
	}
	if o.paymentStatus == PaymentPaid {
		return nil
	}
	if o.paymentStatus != PaymentPending && o.paymentStatus != PaymentFailed {
		return errs.NewInvalidTransitionError("order payment", o.paymentStatus, PaymentPaid)
	}
	o.paymentStatus = PaymentPaid
	return nil
}

// MarkPaymentFailed records a failed attempt and frees the slot for a new payment.
func (o *Order) MarkPaymentFailed(paymentID kernel.UUID) error {
	if !o.isActivePayment(paymentID) {
		return fmt.Errorf("%w: payment %s is not active on order %s", errs.ErrInvalidTransition, paymentID, o.number)
	}
	if o.paymentStatus.IsSettled() {
		return errs.NewInvalidTransitionError("order payment", o.paymentStatus, PaymentFailed)
	}
	o.paymentStatus = PaymentFailed
	o.activePaymentID = nil
	return nil
}

// DetachPayment drops the reference to an abandoned payment without changing payment status.
func (o *Order) DetachPayment(paymentID kernel.UUID) {
	if o.isActivePayment(paymentID) && !o.paymentStatus.IsSettled() {
		o.activePaymentID = nil
	}
}

// ApplyRefund updates the payment status after money was returned.
func (o *Order) ApplyRefund(fully bool) error {
	if !o.paymentStatus.IsSettled() {
		return errs.NewInvalidTransitionError("order payment", o.paymentStatus, PaymentRefunded)
	}
	if fully {
		o.paymentStatus = PaymentRefunded
	} else {
		o.paymentStatus = PaymentPartiallyRefunded
	}
	return nil
}

// AttachAssignment records the delivery assignment currently serving the order.
func (o *Order) AttachAssignment(assignmentID kernel.UUID) error {
	if err := assignmentID.Validate(); err != nil {
		return err
	}
	if o.status != Confirmed && o.status != Processing && o.status != ReadyForPickup {
		return fmt.Errorf("%w: order %s is %s and cannot be dispatched", errs.ErrInvalidTransition, o.number, o.status)
	}
	if o.activeAssignmentID != nil {
		return fmt.Errorf("%w: order %s already has active assignment %s",
			errs.ErrInvalidTransition, o.number, o.activeAssignmentID)
	}
	o.activeAssignmentID = &assignmentID
	return nil
}

// DetachAssignment clears the reference when the assignment is cancelled or fails.
func (o *Order) DetachAssignment(assignmentID kernel.UUID) {
	if o.activeAssignmentID != nil && o.activeAssignmentID.IsEqual(assignmentID) {
		o.activeAssignmentID = nil
	}
}

// IsDispatchable reports whether a delivery agent may be assigned now.
func (o *Order) IsDispatchable() bool {
	return o.activeAssignmentID == nil &&
		(o.status == Confirmed || o.status == Processing || o.status == ReadyForPickup)
}

func (o *Order) isActivePayment(paymentID kernel.UUID) bool {
	return o.activePaymentID != nil && o.activePaymentID.IsEqual(paymentID)
}

func (o *Order) transition(next Status, actor kernel.Actor, note string, override bool, at time.Time) {
	prev := o.status
	o.status = next
	o.appendHistory(prev, next, actor, note, override, at)
	o.events.Record(StatusChangedEvent{
		OrderID:  o.id,
		Number:   o.number,
		From:     prev,
		To:       next,
		Actor:    actor,
		Note:     note,
		Override: override,
		At:       at.UTC(),
	})
}

func (o *Order) appendHistory(from, to Status, actor kernel.Actor, note string, override bool, at time.Time) {
	o.historySequence++
	o.pendingHistory = append(o.pendingHistory, HistoryEntry{
		Sequence: o.historySequence,
		From:     from,
		To:       to,
		Actor:    actor,
		Note:     note,
		Override: override,
		At:       at.UTC(),
	})
}

func (o *Order) checkTotals() error {
	expected := o.subtotal.Add(o.deliveryFee).Add(o.tax).Sub(o.discount)
	if !expected.Equal(o.total) {
		return errs.NewInvariantViolationError("order", o.id.String(),
			fmt.Sprintf("total %s does not equal subtotal + fee + tax - discount = %s", o.total, expected))
	}
	return nil
}

func checkRole(target Status, actor kernel.Actor) error {
	var allowed []kernel.ActorRole
	switch target {
	case Processing, ReadyForPickup:
		allowed = []kernel.ActorRole{kernel.RoleStoreOperator, kernel.RoleAdmin, kernel.RoleSystem}
	case OutForDelivery, Delivered:
		allowed = []kernel.ActorRole{kernel.RoleAgent, kernel.RoleAdmin, kernel.RoleSystem}
	default:
		return nil
	}
	if !actor.HasRole(allowed...) {
		return fmt.Errorf("%w: %s cannot move an order to %s", errs.ErrNotPermitted, actor.Role(), target)
	}
	return nil
}

func validateNumber(number string) error {
	if !strings.HasPrefix(number, NumberPrefix) || len(number) <= len(NumberPrefix) {
		return errs.NewValueIsInvalidErrorWithCause("order number", fmt.Errorf("%q must start with %s", number, NumberPrefix))
	}
	return nil
}
