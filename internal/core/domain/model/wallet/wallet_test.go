package wallet_test

import (
	"testing"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func createWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet(kernel.NewUUID(), kernel.NewUUID())
	require.NoError(t, err)
	return w
}

func entry(txType wallet.TransactionType, amount, key string) wallet.Entry {
	return wallet.Entry{
		Type:           txType,
		Amount:         decimal.RequireFromString(amount),
		Description:    txType.String(),
		IdempotencyKey: key,
	}
}

func TestWallet_Apply(t *testing.T) {
	t.Run("should bracket each change with the balance before and after", func(t *testing.T) {
		w := createWallet(t)

		credit, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "300.00", "k1"), now)
		require.NoError(t, err)
		pay, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionPayment, "120.50", "k2"), now)
		require.NoError(t, err)

		assert.Equal(t, 1, credit.Sequence())
		assert.Equal(t, "0.00", credit.BalanceBefore().StringFixed(2))
		assert.Equal(t, "300.00", credit.BalanceAfter().StringFixed(2))
		assert.Equal(t, 2, pay.Sequence())
		assert.Equal(t, "179.50", pay.BalanceAfter().StringFixed(2))
		assert.Equal(t, "179.50", w.Balance().StringFixed(2))
	})

	t.Run("should refuse to go negative", func(t *testing.T) {
		w := createWallet(t)
		_, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "50.00", "k1"), now)
		require.NoError(t, err)

		_, err = w.Apply(kernel.NewUUID(), entry(wallet.TransactionDebit, "50.01", "k2"), now)

		assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
		assert.Equal(t, "50.00", w.Balance().StringFixed(2))
		assert.Equal(t, 1, w.Sequence())
	})

	t.Run("should require an idempotency key", func(t *testing.T) {
		w := createWallet(t)

		_, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionRefund, "10.00", ""), now)

		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		w := createWallet(t)

		_, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "0", "k1"), now)

		assert.Error(t, err)
		assert.True(t, w.Balance().IsZero())
	})

	t.Run("should reject changes to an inactive wallet", func(t *testing.T) {
		w, err := wallet.RestoreWallet(kernel.NewUUID(), kernel.NewUUID(), decimal.Zero, false, 0, 1)
		require.NoError(t, err)

		_, err = w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "10.00", "k1"), now)

		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
}

func TestWallet_Reconcile(t *testing.T) {
	t.Run("should accept a consistent ledger", func(t *testing.T) {
		w := createWallet(t)
		var log []*wallet.Transaction
		for i, e := range []wallet.Entry{
			entry(wallet.TransactionCredit, "100.00", "k1"),
			entry(wallet.TransactionRefund, "25.00", "k2"),
			entry(wallet.TransactionDebit, "60.00", "k3"),
		} {
			tx, err := w.Apply(kernel.NewUUID(), e, now.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			log = append(log, tx)
		}

		assert.NoError(t, w.Reconcile(log))
	})

	t.Run("should detect a balance that drifted from the ledger", func(t *testing.T) {
		w := createWallet(t)
		tx, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "100.00", "k1"), now)
		require.NoError(t, err)

		drifted, err := wallet.RestoreWallet(w.ID(), w.CustomerID(), decimal.RequireFromString("90.00"), true, 1, 2)
		require.NoError(t, err)

		assert.ErrorIs(t, drifted.Reconcile([]*wallet.Transaction{tx}), errs.ErrInvariantViolation)
	})

	t.Run("should detect a sequence gap", func(t *testing.T) {
		w := createWallet(t)
		_, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "100.00", "k1"), now)
		require.NoError(t, err)
		second, err := w.Apply(kernel.NewUUID(), entry(wallet.TransactionCredit, "5.00", "k2"), now)
		require.NoError(t, err)

		assert.ErrorIs(t, w.Reconcile([]*wallet.Transaction{second}), errs.ErrInvariantViolation)
	})
}
