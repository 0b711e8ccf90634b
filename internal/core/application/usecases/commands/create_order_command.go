package commands

import (
	"errors"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/guard"
)

var ErrCreateOrderCommandIsNotConstructed = errors.New(
	"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
)

// CreateOrderCommand turns a customer's active cart at one store into an order.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(customerID, storeID, actor)
//	if err != nil {
//	    return fmt.Errorf("invalid order request: %w", err)
//	}
//
//	created, err := handler.Handle(ctx, cmd)
//	if errors.Is(err, errs.ErrOutOfStock) {
//	    // the cart asks for more than the store holds
//	}
//	fmt.Printf("order %s is pending payment", created.Number())
type CreateOrderCommand struct {
	customerID kernel.UUID
	storeID    kernel.UUID
	actor      kernel.Actor

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand validates the ids and the requesting actor.
func NewCreateOrderCommand(customerID, storeID kernel.UUID, actor kernel.Actor) (CreateOrderCommand, error) {
	if err := errors.Join(
		customerID.Validate(),
		storeID.Validate(),
		actor.Validate(),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return CreateOrderCommand{
		customerID: customerID,
		storeID:    storeID,
		actor:      actor,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) CustomerID() kernel.UUID { return c.customerID }
func (c CreateOrderCommand) StoreID() kernel.UUID    { return c.storeID }
func (c CreateOrderCommand) Actor() kernel.Actor     { return c.actor }
