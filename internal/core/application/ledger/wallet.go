package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/logging"
	"fulfillment/internal/pkg/metrics"

	"github.com/shopspring/decimal"
)

// Wallet credits and debits customer wallets. Every change is idempotent per the
// caller's key: replaying a key returns the transaction recorded the first time.
type Wallet struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWallet(logger *slog.Logger, m *metrics.Metrics) (*Wallet, error) {
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	return &Wallet{logger: logger.With("component", "wallet_ledger"), metrics: m}, nil
}

// Credit adds money, creating the wallet on first use.
func (l *Wallet) Credit(
	ctx context.Context,
	uow ports.UnitOfWork,
	customerID kernel.UUID,
	entry wallet.Entry,
	now time.Time,
) (*wallet.Transaction, error) {
	if entry.Type != wallet.TransactionCredit && entry.Type != wallet.TransactionRefund {
		return nil, errs.NewValueIsInvalidError("credit transaction type")
	}
	return l.apply(ctx, uow, customerID, entry, now, true)
}

// Debit removes money. Fails with InsufficientFundsError when the balance is short.
func (l *Wallet) Debit(
	ctx context.Context,
	uow ports.UnitOfWork,
	customerID kernel.UUID,
	entry wallet.Entry,
	now time.Time,
) (*wallet.Transaction, error) {
	if entry.Type != wallet.TransactionDebit && entry.Type != wallet.TransactionPayment {
		return nil, errs.NewValueIsInvalidError("debit transaction type")
	}
	return l.apply(ctx, uow, customerID, entry, now, false)
}

// Reconcile verifies the stored balance against the full transaction log.
func (l *Wallet) Reconcile(ctx context.Context, uow ports.UnitOfWork, customerID kernel.UUID) error {
	w, err := uow.WalletRepository().GetByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	txs, err := uow.WalletRepository().Transactions(ctx, w.ID())
	if err != nil {
		return err
	}
	if err = w.Reconcile(txs); err != nil {
		l.alert(err)
		return err
	}
	return nil
}

func (l *Wallet) apply(
	ctx context.Context,
	uow ports.UnitOfWork,
	customerID kernel.UUID,
	entry wallet.Entry,
	now time.Time,
	createMissing bool,
) (*wallet.Transaction, error) {
	repo := uow.WalletRepository()

	w, err := repo.GetByCustomer(ctx, customerID)
	switch {
	case errors.Is(err, errs.ErrObjectNotFound) && createMissing:
		if w, err = wallet.NewWallet(kernel.NewUUID(), customerID); err != nil {
			return nil, err
		}
		if err = repo.Add(ctx, w); err != nil {
			return nil, err
		}
	case errors.Is(err, errs.ErrObjectNotFound):
		return nil, errs.NewInsufficientFundsError(customerID.String(), entry.Amount, decimal.Zero)
	case err != nil:
		return nil, err
	}

	existing, err := repo.FindTransaction(ctx, w.ID(), entry.IdempotencyKey)
	switch {
	case err == nil:
		l.logger.InfoContext(ctx, "wallet entry replayed",
			"wallet_id", w.ID().String(),
			"idempotency_key", entry.IdempotencyKey)
		return existing, nil
	case !errors.Is(err, errs.ErrObjectNotFound):
		return nil, err
	}

	tx, err := w.Apply(kernel.NewUUID(), entry, now)
	if err != nil {
		return nil, err
	}
	if err = repo.AddTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err = repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Wallet) alert(err error) {
	var violation *errs.InvariantViolationError
	if errors.As(err, &violation) {
		l.metrics.InvariantViolation(violation.Entity)
		logging.Alert(l.logger, "wallet ledger does not reconcile",
			"wallet_id", violation.ID,
			"detail", violation.Detail)
	}
}
