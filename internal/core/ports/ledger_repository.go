package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
)

// StockRepository defines the persistence contract for inventory rows.
type StockRepository interface {
	Add(ctx context.Context, stock *inventory.Stock) error
	Update(ctx context.Context, stock *inventory.Stock) error
	Get(ctx context.Context, storeProductID kernel.UUID) (*inventory.Stock, error)

	// GetForUpdate loads and locks the rows of storeProductIDs in ascending id order,
	// so concurrent transactions touching overlapping rows cannot deadlock.
	GetForUpdate(ctx context.Context, storeProductIDs []kernel.UUID) ([]*inventory.Stock, error)
}

// ReservationRepository defines the persistence contract for inventory reservations.
type ReservationRepository interface {
	Add(ctx context.Context, reservation *inventory.Reservation) error
	Update(ctx context.Context, reservation *inventory.Reservation) error
	ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*inventory.Reservation, error)

	// ListDue returns active reservations that expired before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error)
}

// WalletRepository defines the persistence contract for wallets and their
// append-only transaction log.
type WalletRepository interface {
	Add(ctx context.Context, w *wallet.Wallet) error
	Update(ctx context.Context, w *wallet.Wallet) error
	GetByCustomer(ctx context.Context, customerID kernel.UUID) (*wallet.Wallet, error)

	// ListCustomers pages through wallet owners in id order, starting after the given
	// id. The zero UUID starts from the beginning.
	ListCustomers(ctx context.Context, after kernel.UUID, limit int) ([]kernel.UUID, error)

	AddTransaction(ctx context.Context, tx *wallet.Transaction) error

	// FindTransaction returns the transaction recorded under idempotencyKey, or an
	// errs.ErrObjectNotFound error.
	FindTransaction(ctx context.Context, walletID kernel.UUID, idempotencyKey string) (*wallet.Transaction, error)

	// Transactions returns the log ordered by sequence.
	Transactions(ctx context.Context, walletID kernel.UUID) ([]*wallet.Transaction, error)
}
