package wallet

import (
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var ErrTransactionIsNotConstructed = errors.New("Transaction must be created via Wallet.Apply or RestoreTransaction")

type TransactionType int

const (
	TransactionUnknown TransactionType = iota
	TransactionCredit
	TransactionDebit
	TransactionRefund
	TransactionPayment
)

var transactionTypeNames = map[TransactionType]string{
	TransactionCredit:  "credit",
	TransactionDebit:   "debit",
	TransactionRefund:  "refund",
	TransactionPayment: "payment",
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t TransactionType) Validate() error {
	if _, ok := transactionTypeNames[t]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("transaction type", fmt.Errorf("%d is not a valid type", t))
	}
	return nil
}

// Sign is +1 for money entering the wallet and -1 for money leaving it.
func (t TransactionType) Sign() decimal.Decimal {
	if t == TransactionDebit || t == TransactionPayment {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Transaction is an immutable wallet ledger entry.
type Transaction struct {
	id             kernel.UUID
	walletID       kernel.UUID
	sequence       int
	txType         TransactionType
	amount         decimal.Decimal
	balanceBefore  decimal.Decimal
	balanceAfter   decimal.Decimal
	description    string
	orderID        *kernel.UUID
	refundID       *kernel.UUID
	idempotencyKey string
	createdAt      time.Time
	guard          guard.ConstructorGuard
}

func RestoreTransaction(
	id, walletID kernel.UUID,
	sequence int,
	txType TransactionType,
	amount, balanceBefore, balanceAfter decimal.Decimal,
	description string,
	orderID, refundID *kernel.UUID,
	idempotencyKey string,
	createdAt time.Time,
) (*Transaction, error) {
	if err := errors.Join(id.Validate(), walletID.Validate(), txType.Validate()); err != nil {
		return nil, err
	}
	return &Transaction{
		id:             id,
		walletID:       walletID,
		sequence:       sequence,
		txType:         txType,
		amount:         amount,
		balanceBefore:  balanceBefore,
		balanceAfter:   balanceAfter,
		description:    description,
		orderID:        orderID,
		refundID:       refundID,
		idempotencyKey: idempotencyKey,
		createdAt:      createdAt.UTC(),
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (t *Transaction) Validate() error {
	if t == nil {
		return ErrTransactionIsNotConstructed
	}
	return t.guard.Validate(ErrTransactionIsNotConstructed)
}

func (t *Transaction) ID() kernel.UUID                { return t.id }
func (t *Transaction) WalletID() kernel.UUID          { return t.walletID }
func (t *Transaction) Sequence() int                  { return t.sequence }
func (t *Transaction) Type() TransactionType          { return t.txType }
func (t *Transaction) Amount() decimal.Decimal        { return t.amount }
func (t *Transaction) BalanceBefore() decimal.Decimal { return t.balanceBefore }
func (t *Transaction) BalanceAfter() decimal.Decimal  { return t.balanceAfter }
func (t *Transaction) Description() string            { return t.description }
func (t *Transaction) OrderID() *kernel.UUID          { return t.orderID }
func (t *Transaction) RefundID() *kernel.UUID         { return t.refundID }
func (t *Transaction) IdempotencyKey() string         { return t.idempotencyKey }
func (t *Transaction) CreatedAt() time.Time           { return t.createdAt }
