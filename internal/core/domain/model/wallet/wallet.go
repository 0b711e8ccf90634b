// Package wallet models a customer's stored-value balance and its append-only
// transaction log.
package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var ErrWalletIsNotConstructed = errors.New("Wallet must be created via NewWallet or RestoreWallet constructor")

// Wallet holds the current balance. Every balance change produces exactly one
// Transaction whose balanceBefore/balanceAfter bracket the change.
type Wallet struct {
	id         kernel.UUID
	customerID kernel.UUID
	balance    decimal.Decimal
	active     bool
	sequence   int
	version    kernel.Version
	guard      guard.ConstructorGuard
}

func NewWallet(id, customerID kernel.UUID) (*Wallet, error) {
	if err := errors.Join(id.Validate(), customerID.Validate()); err != nil {
		return nil, err
	}
	return &Wallet{
		id:         id,
		customerID: customerID,
		balance:    decimal.Zero,
		active:     true,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

func RestoreWallet(
	id, customerID kernel.UUID,
	balance decimal.Decimal,
	active bool,
	sequence, version int,
) (*Wallet, error) {
	if err := errors.Join(id.Validate(), customerID.Validate()); err != nil {
		return nil, err
	}
	return &Wallet{
		id:         id,
		customerID: customerID,
		balance:    balance,
		active:     active,
		sequence:   sequence,
		version:    kernel.RestoreVersion(version),
		guard:      guard.NewConstructorGuard(),
	}, nil
}

func (w *Wallet) Validate() error {
	if w == nil {
		return ErrWalletIsNotConstructed
	}
	return w.guard.Validate(ErrWalletIsNotConstructed)
}

func (w *Wallet) ID() kernel.UUID          { return w.id }
func (w *Wallet) CustomerID() kernel.UUID  { return w.customerID }
func (w *Wallet) Balance() decimal.Decimal { return w.balance }
func (w *Wallet) Active() bool             { return w.active }
func (w *Wallet) Sequence() int            { return w.sequence }
func (w *Wallet) Version() int             { return w.version.Current() }

func (w *Wallet) AdvanceVersion() (int, int) {
	return w.version.Advance()
}

// Entry describes a requested balance change.
type Entry struct {
	Type           TransactionType
	Amount         decimal.Decimal
	Description    string
	OrderID        *kernel.UUID
	RefundID       *kernel.UUID
	IdempotencyKey string
}

// Apply moves the balance and returns the transaction recording it. Debits and
// payments above the balance fail with InsufficientFundsError.
func (w *Wallet) Apply(txID kernel.UUID, entry Entry, at time.Time) (*Transaction, error) {
	if !w.active {
		return nil, errs.NewValueIsInvalidErrorWithCause("wallet", fmt.Errorf("wallet %s is inactive", w.id))
	}
	if err := errors.Join(
		txID.Validate(),
		entry.Type.Validate(),
		kernel.ValidatePositiveAmount("amount", entry.Amount),
	); err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.IdempotencyKey) == "" {
		return nil, errs.NewValueIsRequiredError("idempotency key")
	}

	before := w.balance
	after := before.Add(entry.Type.Sign().Mul(entry.Amount))
	if after.IsNegative() {
		return nil, errs.NewInsufficientFundsError(w.id.String(), entry.Amount, before)
	}

	w.balance = after
	w.sequence++
	return &Transaction{
		id:             txID,
		walletID:       w.id,
		sequence:       w.sequence,
		txType:         entry.Type,
		amount:         entry.Amount,
		balanceBefore:  before,
		balanceAfter:   after,
		description:    entry.Description,
		orderID:        entry.OrderID,
		refundID:       entry.RefundID,
		idempotencyKey: entry.IdempotencyKey,
		createdAt:      at.UTC(),
		guard:          guard.NewConstructorGuard(),
	}, nil
}

// Reconcile checks the balance against the full transaction log in sequence order.
func (w *Wallet) Reconcile(transactions []*Transaction) error {
	sum := decimal.Zero
	for i, tx := range transactions {
		if tx.sequence != i+1 {
			return errs.NewInvariantViolationError("wallet", w.id.String(),
				fmt.Sprintf("transaction sequence gap at %d", i+1))
		}
		if !tx.balanceBefore.Equal(sum) {
			return errs.NewInvariantViolationError("wallet", w.id.String(),
				fmt.Sprintf("transaction %d starts at %s, expected %s", tx.sequence, tx.balanceBefore, sum))
		}
		sum = sum.Add(tx.txType.Sign().Mul(tx.amount))
		if !tx.balanceAfter.Equal(sum) {
			return errs.NewInvariantViolationError("wallet", w.id.String(),
				fmt.Sprintf("transaction %d ends at %s, expected %s", tx.sequence, tx.balanceAfter, sum))
		}
	}
	if !w.balance.Equal(sum) {
		return errs.NewInvariantViolationError("wallet", w.id.String(),
			fmt.Sprintf("balance %s does not match ledger sum %s", w.balance, sum))
	}
	return nil
}
