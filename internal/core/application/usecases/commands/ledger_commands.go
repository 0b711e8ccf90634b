package commands

import (
	"errors"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var ErrRestockCommandIsNotConstructed = errors.New("RestockCommand must be created via NewRestockCommand constructor")

type RestockCommand struct {
	storeProductID kernel.UUID
	quantity       int

	guard guard.ConstructorGuard
}

func NewRestockCommand(storeProductID kernel.UUID, quantity int) (RestockCommand, error) {
	if err := storeProductID.Validate(); err != nil {
		return RestockCommand{}, err
	}
	if quantity <= 0 {
		return RestockCommand{}, errs.NewValueIsOutOfRangeError("quantity", quantity, 1, "unbounded")
	}
	return RestockCommand{
		storeProductID: storeProductID,
		quantity:       quantity,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c RestockCommand) Validate() error {
	return c.guard.Validate(ErrRestockCommandIsNotConstructed)
}

func (c RestockCommand) StoreProductID() kernel.UUID { return c.storeProductID }
func (c RestockCommand) Quantity() int               { return c.quantity }

var ErrCreditWalletCommandIsNotConstructed = errors.New("CreditWalletCommand must be created via NewCreditWalletCommand constructor")

// CreditWalletCommand tops up a customer's wallet. The idempotency key is chosen by
// the caller; a replayed key returns the first transaction.
type CreditWalletCommand struct {
	customerID     kernel.UUID
	amount         decimal.Decimal
	description    string
	idempotencyKey string

	guard guard.ConstructorGuard
}

func NewCreditWalletCommand(customerID kernel.UUID, amount decimal.Decimal, description, idempotencyKey string) (CreditWalletCommand, error) {
	if err := customerID.Validate(); err != nil {
		return CreditWalletCommand{}, err
	}
	if !amount.IsPositive() {
		return CreditWalletCommand{}, errs.NewInvalidAmountError(amount, decimal.Zero)
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return CreditWalletCommand{}, errs.NewValueIsRequiredError("idempotency key")
	}
	return CreditWalletCommand{
		customerID:     customerID,
		amount:         amount,
		description:    description,
		idempotencyKey: idempotencyKey,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c CreditWalletCommand) Validate() error {
	return c.guard.Validate(ErrCreditWalletCommandIsNotConstructed)
}

func (c CreditWalletCommand) CustomerID() kernel.UUID { return c.customerID }
func (c CreditWalletCommand) Amount() decimal.Decimal { return c.amount }
func (c CreditWalletCommand) Description() string     { return c.description }
func (c CreditWalletCommand) IdempotencyKey() string  { return c.idempotencyKey }
