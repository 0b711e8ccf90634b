package payment

import (
	"fmt"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// MethodType is the instrument a customer pays with.
type MethodType int

const (
	MethodUnknown MethodType = iota
	MethodCreditCard
	MethodDebitCard
	MethodNetBanking
	MethodUPI
	MethodWallet
	MethodCashOnDelivery
	MethodEMI
)

var methodTypeNames = map[MethodType]string{
	MethodCreditCard:     "credit_card",
	MethodDebitCard:      "debit_card",
	MethodNetBanking:     "net_banking",
	MethodUPI:            "upi",
	MethodWallet:         "wallet",
	MethodCashOnDelivery: "cash_on_delivery",
	MethodEMI:            "emi",
}

func (m MethodType) String() string {
	if name, ok := methodTypeNames[m]; ok {
		return name
	}
	return "unknown"
}

func (m MethodType) Validate() error {
	if _, ok := methodTypeNames[m]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("payment method", fmt.Errorf("%d is not a valid method", m))
	}
	return nil
}

func ParseMethodType(s string) (MethodType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for m, name := range methodTypeNames {
		if name == normalized {
			return m, nil
		}
	}
	return MethodUnknown, errs.NewValueIsInvalidErrorWithCause("payment method", fmt.Errorf("%q is not a valid method", s))
}

// UsesGateway reports whether the method is settled by the external gateway.
func (m MethodType) UsesGateway() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodNetBanking, MethodUPI, MethodEMI:
		return true
	default:
		return false
	}
}

// Method is one row of the configured payment-method table.
type Method struct {
	Type          MethodType
	DisplayName   string
	Active        bool
	FeePercentage decimal.Decimal
	FixedFee      decimal.Decimal
	MinAmount     decimal.Decimal
	MaxAmount     *decimal.Decimal
}

// Fee is amount * FeePercentage / 100 + FixedFee.
func (m Method) Fee(amount decimal.Decimal) decimal.Decimal {
	return kernel.RoundMoney(kernel.Percentage(amount, m.FeePercentage).Add(m.FixedFee))
}

// CheckAvailable fails with MethodUnavailableError when the method is disabled or the
// amount is outside its limits.
func (m Method) CheckAvailable(amount decimal.Decimal) error {
	switch {
	case !m.Active:
		return errs.NewMethodUnavailableError(m.Type.String(), "method is disabled")
	case amount.LessThan(m.MinAmount):
		return errs.NewMethodUnavailableError(m.Type.String(),
			fmt.Sprintf("amount %s is below minimum %s", amount, m.MinAmount))
	case m.MaxAmount != nil && amount.GreaterThan(*m.MaxAmount):
		return errs.NewMethodUnavailableError(m.Type.String(),
			fmt.Sprintf("amount %s is above maximum %s", amount, *m.MaxAmount))
	}
	return nil
}

// DefaultMethods is used when no method table is configured.
func DefaultMethods() []Method {
	return []Method{
		{Type: MethodCreditCard, DisplayName: "Credit Card", Active: true, FeePercentage: decimal.RequireFromString("2.00")},
		{Type: MethodDebitCard, DisplayName: "Debit Card", Active: true, FeePercentage: decimal.RequireFromString("1.00")},
		{Type: MethodNetBanking, DisplayName: "Net Banking", Active: true},
		{Type: MethodUPI, DisplayName: "UPI", Active: true},
		{Type: MethodWallet, DisplayName: "Wallet", Active: true},
		{Type: MethodCashOnDelivery, DisplayName: "Cash on Delivery", Active: true, FixedFee: decimal.RequireFromString("20.00")},
		{Type: MethodEMI, DisplayName: "EMI", Active: true, MinAmount: decimal.RequireFromString("3000.00")},
	}
}

// Methods is the payment-method table keyed by type.
type Methods map[MethodType]Method

// NewMethods indexes rows by type. A type listed twice is rejected.
func NewMethods(rows []Method) (Methods, error) {
	methods := make(Methods, len(rows))
	for _, row := range rows {
		if err := row.Type.Validate(); err != nil {
			return nil, err
		}
		if _, ok := methods[row.Type]; ok {
			return nil, errs.NewValueIsInvalidErrorWithCause("payment methods",
				fmt.Errorf("%s is listed more than once", row.Type))
		}
		methods[row.Type] = row
	}
	return methods, nil
}

// Lookup fails with MethodUnavailableError when t is not configured.
func (m Methods) Lookup(t MethodType) (Method, error) {
	method, ok := m[t]
	if !ok {
		return Method{}, errs.NewMethodUnavailableError(t.String(), "method is not configured")
	}
	return method, nil
}
