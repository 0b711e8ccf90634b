package walletrepo

import (
	"context"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWalletRepository implements WalletRepository using GORM.
type GormWalletRepository struct {
	db *gorm.DB
}

func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

func (r *GormWalletRepository) Add(ctx context.Context, w *wallet.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	dto := walletFromDomain(w)
	return pgconv.Translate(r.db.WithContext(ctx).Create(&dto).Error, "wallet", w.CustomerID().String())
}

func (r *GormWalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	expected, _ := w.AdvanceVersion()
	dto := walletFromDomain(w)
	result := r.db.WithContext(ctx).Model(&WalletDTO{}).
		Where("id = ? AND version = ?", dto.ID, expected).
		Updates(map[string]any{
			"balance":  dto.Balance,
			"active":   dto.Active,
			"sequence": dto.Sequence,
			"version":  dto.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("wallet", w.ID().String())
	}
	return nil
}

func (r *GormWalletRepository) GetByCustomer(ctx context.Context, customerID kernel.UUID) (*wallet.Wallet, error) {
	var dto WalletDTO
	if err := r.db.WithContext(ctx).First(&dto, "customer_id = ?", customerID.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "wallet", customerID.String())
	}
	return walletToDomain(dto)
}

func (r *GormWalletRepository) ListCustomers(ctx context.Context, after kernel.UUID, limit int) ([]kernel.UUID, error) {
	var raw []uuid.UUID
	err := r.db.WithContext(ctx).Model(&WalletDTO{}).
		Where("customer_id > ?", after.Bytes()).
		Order("customer_id").
		Limit(limit).
		Pluck("customer_id", &raw).Error
	if err != nil {
		return nil, err
	}
	ids := make([]kernel.UUID, 0, len(raw))
	for _, id := range raw {
		customerID, err := pgconv.FromUUID(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, customerID)
	}
	return ids, nil
}

func (r *GormWalletRepository) AddTransaction(ctx context.Context, tx *wallet.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	dto := transactionFromDomain(tx)
	return pgconv.Translate(r.db.WithContext(ctx).Create(&dto).Error, "wallet transaction", tx.IdempotencyKey())
}

func (r *GormWalletRepository) FindTransaction(ctx context.Context, walletID kernel.UUID, idempotencyKey string) (*wallet.Transaction, error) {
	var dto TransactionDTO
	err := r.db.WithContext(ctx).
		First(&dto, "wallet_id = ? AND idempotency_key = ?", walletID.Bytes(), idempotencyKey).Error
	if err != nil {
		return nil, pgconv.Translate(err, "wallet transaction", idempotencyKey)
	}
	return transactionToDomain(dto)
}

func (r *GormWalletRepository) Transactions(ctx context.Context, walletID kernel.UUID) ([]*wallet.Transaction, error) {
	var dtos []TransactionDTO
	if err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID.Bytes()).Order("sequence").Find(&dtos).Error; err != nil {
		return nil, err
	}
	txs := make([]*wallet.Transaction, 0, len(dtos))
	for _, dto := range dtos {
		t, err := transactionToDomain(dto)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}
