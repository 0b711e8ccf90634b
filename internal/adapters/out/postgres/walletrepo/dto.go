// Package walletrepo persists customer wallets and their append-only transaction log.
package walletrepo

import (
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletDTO struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID       `gorm:"type:uuid;uniqueIndex"`
	Balance    decimal.Decimal `gorm:"type:numeric(12,2)"`
	Active     bool
	Sequence   int
	Version    int
}

func (WalletDTO) TableName() string {
	return "wallets"
}

type TransactionDTO struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	WalletID       uuid.UUID       `gorm:"type:uuid;uniqueIndex:ux_wallet_tx_sequence,priority:1;uniqueIndex:ux_wallet_tx_key,priority:1"`
	Sequence       int             `gorm:"uniqueIndex:ux_wallet_tx_sequence,priority:2"`
	Type           int
	Amount         decimal.Decimal `gorm:"type:numeric(12,2)"`
	BalanceBefore  decimal.Decimal `gorm:"type:numeric(12,2)"`
	BalanceAfter   decimal.Decimal `gorm:"type:numeric(12,2)"`
	Description    string
	OrderID        *uuid.UUID `gorm:"type:uuid;index"`
	RefundID       *uuid.UUID `gorm:"type:uuid"`
	IdempotencyKey string     `gorm:"uniqueIndex:ux_wallet_tx_key,priority:2"`
	CreatedAt      time.Time
}

func (TransactionDTO) TableName() string {
	return "wallet_transactions"
}

func walletFromDomain(w *wallet.Wallet) WalletDTO {
	return WalletDTO{
		ID:         w.ID().Bytes(),
		CustomerID: w.CustomerID().Bytes(),
		Balance:    w.Balance(),
		Active:     w.Active(),
		Sequence:   w.Sequence(),
		Version:    w.Version(),
	}
}

func walletToDomain(dto WalletDTO) (*wallet.Wallet, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := pgconv.FromUUID(dto.CustomerID)
	if err != nil {
		return nil, err
	}
	return wallet.RestoreWallet(id, customerID, dto.Balance, dto.Active, dto.Sequence, dto.Version)
}

func transactionFromDomain(t *wallet.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             t.ID().Bytes(),
		WalletID:       t.WalletID().Bytes(),
		Sequence:       t.Sequence(),
		Type:           int(t.Type()),
		Amount:         t.Amount(),
		BalanceBefore:  t.BalanceBefore(),
		BalanceAfter:   t.BalanceAfter(),
		Description:    t.Description(),
		OrderID:        pgconv.UUIDPtr(t.OrderID()),
		RefundID:       pgconv.UUIDPtr(t.RefundID()),
		IdempotencyKey: t.IdempotencyKey(),
		CreatedAt:      t.CreatedAt(),
	}
}

func transactionToDomain(dto TransactionDTO) (*wallet.Transaction, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	walletID, err := pgconv.FromUUID(dto.WalletID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUIDPtr(dto.OrderID)
	if err != nil {
		return nil, err
	}
	refundID, err := pgconv.FromUUIDPtr(dto.RefundID)
	if err != nil {
		return nil, err
	}
	return wallet.RestoreTransaction(
		id, walletID, dto.Sequence,
		wallet.TransactionType(dto.Type),
		dto.Amount, dto.BalanceBefore, dto.BalanceAfter,
		dto.Description, orderID, refundID,
		dto.IdempotencyKey, dto.CreatedAt,
	)
}
