package commands

import (
	"errors"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var (
	ErrConfirmOrderCommandIsNotConstructed = errors.New("ConfirmOrderCommand must be created via NewConfirmOrderCommand constructor")
	ErrAdvanceOrderCommandIsNotConstructed = errors.New("AdvanceOrderCommand must be created via NewAdvanceOrderCommand constructor")
	ErrCancelOrderCommandIsNotConstructed  = errors.New("CancelOrderCommand must be created via NewCancelOrderCommand constructor")
	ErrRefundOrderCommandIsNotConstructed  = errors.New("RefundOrderCommand must be created via NewRefundOrderCommand constructor")
)

// ConfirmOrderCommand confirms a pending order whose payment is settled.
type ConfirmOrderCommand struct {
	orderID kernel.UUID
	actor   kernel.Actor

	guard guard.ConstructorGuard
}

func NewConfirmOrderCommand(orderID kernel.UUID, actor kernel.Actor) (ConfirmOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), actor.Validate()); err != nil {
		return ConfirmOrderCommand{}, err
	}
	return ConfirmOrderCommand{orderID: orderID, actor: actor, guard: guard.NewConstructorGuard()}, nil
}

func (c ConfirmOrderCommand) Validate() error {
	return c.guard.Validate(ErrConfirmOrderCommandIsNotConstructed)
}

func (c ConfirmOrderCommand) OrderID() kernel.UUID { return c.orderID }
func (c ConfirmOrderCommand) Actor() kernel.Actor  { return c.actor }

// AdvanceOrderCommand moves an order to target. With override an admin may skip
// stages; note is then kept in the audit history.
type AdvanceOrderCommand struct {
	orderID  kernel.UUID
	target   order.Status
	actor    kernel.Actor
	note     string
	override bool

	guard guard.ConstructorGuard
}

func NewAdvanceOrderCommand(
	orderID kernel.UUID,
	target order.Status,
	actor kernel.Actor,
	note string,
	override bool,
) (AdvanceOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), target.Validate(), actor.Validate()); err != nil {
		return AdvanceOrderCommand{}, err
	}
	return AdvanceOrderCommand{
		orderID:  orderID,
		target:   target,
		actor:    actor,
		note:     strings.TrimSpace(note),
		override: override,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

func (c AdvanceOrderCommand) Validate() error {
	return c.guard.Validate(ErrAdvanceOrderCommandIsNotConstructed)
}

func (c AdvanceOrderCommand) OrderID() kernel.UUID { return c.orderID }
func (c AdvanceOrderCommand) Target() order.Status { return c.target }
func (c AdvanceOrderCommand) Actor() kernel.Actor  { return c.actor }
func (c AdvanceOrderCommand) Note() string         { return c.note }
func (c AdvanceOrderCommand) Override() bool       { return c.override }

// CancelOrderCommand cancels an order before it is packed.
type CancelOrderCommand struct {
	orderID kernel.UUID
	actor   kernel.Actor
	reason  string

	// onlyIfUnpaid skips orders whose payment was captured meanwhile.
	onlyIfUnpaid bool

	guard guard.ConstructorGuard
}

func NewCancelOrderCommand(orderID kernel.UUID, actor kernel.Actor, reason string) (CancelOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), actor.Validate()); err != nil {
		return CancelOrderCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return CancelOrderCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return CancelOrderCommand{
		orderID: orderID,
		actor:   actor,
		reason:  strings.TrimSpace(reason),
		guard:   guard.NewConstructorGuard(),
	}, nil
}

// NewCancelUnpaidOrderCommand cancels orderID only while it is still pending and
// unpaid. Used by the reservation sweep.
func NewCancelUnpaidOrderCommand(orderID kernel.UUID, actor kernel.Actor, reason string) (CancelOrderCommand, error) {
	cmd, err := NewCancelOrderCommand(orderID, actor, reason)
	if err != nil {
		return CancelOrderCommand{}, err
	}
	cmd.onlyIfUnpaid = true
	return cmd, nil
}

func (c CancelOrderCommand) Validate() error {
	return c.guard.Validate(ErrCancelOrderCommandIsNotConstructed)
}

func (c CancelOrderCommand) OrderID() kernel.UUID { return c.orderID }
func (c CancelOrderCommand) Actor() kernel.Actor  { return c.actor }
func (c CancelOrderCommand) Reason() string       { return c.reason }
func (c CancelOrderCommand) OnlyIfUnpaid() bool   { return c.onlyIfUnpaid }

// RefundOrderCommand closes a non-terminal order as refunded on the failure path.
type RefundOrderCommand struct {
	orderID kernel.UUID
	actor   kernel.Actor
	reason  string

	guard guard.ConstructorGuard
}

func NewRefundOrderCommand(orderID kernel.UUID, actor kernel.Actor, reason string) (RefundOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), actor.Validate()); err != nil {
		return RefundOrderCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return RefundOrderCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return RefundOrderCommand{orderID: orderID, actor: actor, reason: reason, guard: guard.NewConstructorGuard()}, nil
}

func (c RefundOrderCommand) Validate() error {
	return c.guard.Validate(ErrRefundOrderCommandIsNotConstructed)
}

func (c RefundOrderCommand) OrderID() kernel.UUID { return c.orderID }
func (c RefundOrderCommand) Actor() kernel.Actor  { return c.actor }
func (c RefundOrderCommand) Reason() string       { return c.reason }
