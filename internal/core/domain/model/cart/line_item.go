// Package cart holds the immutable snapshot of a customer's cart taken when an
// order is placed. Prices are fixed at snapshot time and never re-read afterwards.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var (
	ErrLineItemIsNotConstructed = errors.New("LineItem must be created via NewLineItem constructor")
	ErrAddOnIsNotConstructed    = errors.New("AddOn must be created via NewAddOn constructor")
)

// AddOn is an extra ingredient attached to a line.
type AddOn struct {
	ingredientID kernel.UUID
	name         string
	quantity     int
	unitPrice    decimal.Decimal
	guard        guard.ConstructorGuard
}

func NewAddOn(ingredientID kernel.UUID, name string, quantity int, unitPrice decimal.Decimal) (AddOn, error) {
	if err := errors.Join(
		ingredientID.Validate(),
		validateName("add-on name", name),
		validateQuantity(quantity),
		kernel.ValidateNonNegativeAmount("add-on price", unitPrice),
	); err != nil {
		return AddOn{}, err
	}
	return AddOn{
		ingredientID: ingredientID,
		name:         name,
		quantity:     quantity,
		unitPrice:    unitPrice,
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (a AddOn) IngredientID() kernel.UUID  { return a.ingredientID }
func (a AddOn) Name() string               { return a.name }
func (a AddOn) Quantity() int              { return a.quantity }
func (a AddOn) UnitPrice() decimal.Decimal { return a.unitPrice }
func (a AddOn) Validate() error            { return a.guard.Validate(ErrAddOnIsNotConstructed) }

func (a AddOn) Total() decimal.Decimal {
	return a.unitPrice.Mul(decimal.NewFromInt(int64(a.quantity)))
}

// LineItem is one product line with the product name and price captured at snapshot time.
type LineItem struct {
	storeProductID      kernel.UUID
	productName         string
	quantity            int
	unitPrice           decimal.Decimal
	addOns              []AddOn
	specialInstructions string
	guard               guard.ConstructorGuard
}

func NewLineItem(
	storeProductID kernel.UUID,
	productName string,
	quantity int,
	unitPrice decimal.Decimal,
	addOns []AddOn,
	specialInstructions string,
) (LineItem, error) {
	err := errors.Join(
		storeProductID.Validate(),
		validateName("product name", productName),
		validateQuantity(quantity),
		kernel.ValidatePositiveAmount("unit price", unitPrice),
	)
	for _, a := range addOns {
		err = errors.Join(err, a.Validate())
	}
	if err != nil {
		return LineItem{}, err
	}

	copied := make([]AddOn, len(addOns))
	copy(copied, addOns)
	return LineItem{
		storeProductID:      storeProductID,
		productName:         productName,
		quantity:            quantity,
		unitPrice:           unitPrice,
		addOns:              copied,
		specialInstructions: specialInstructions,
		guard:               guard.NewConstructorGuard(),
	}, nil
}

func (l LineItem) StoreProductID() kernel.UUID { return l.storeProductID }
func (l LineItem) ProductName() string         { return l.productName }
func (l LineItem) Quantity() int               { return l.quantity }
func (l LineItem) UnitPrice() decimal.Decimal  { return l.unitPrice }
func (l LineItem) SpecialInstructions() string { return l.specialInstructions }
func (l LineItem) Validate() error             { return l.guard.Validate(ErrLineItemIsNotConstructed) }

func (l LineItem) AddOns() []AddOn {
	out := make([]AddOn, len(l.addOns))
	copy(out, l.addOns)
	return out
}

// Total is quantity x unit price plus every add-on.
func (l LineItem) Total() decimal.Decimal {
	total := l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity)))
	for _, a := range l.addOns {
		total = total.Add(a.Total())
	}
	return kernel.RoundMoney(total)
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is not greater than 0", qty))
	}
	return nil
}

func validateName(param, name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.NewValueIsRequiredError(param)
	}
	return nil
}
