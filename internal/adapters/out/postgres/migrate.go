package postgres

import (
	"fulfillment/internal/adapters/out/postgres/deliveryrepo"
	"fulfillment/internal/adapters/out/postgres/inventoryrepo"
	"fulfillment/internal/adapters/out/postgres/orderrepo"
	"fulfillment/internal/adapters/out/postgres/paymentrepo"
	"fulfillment/internal/adapters/out/postgres/walletrepo"

	"gorm.io/gorm"
)

// Models lists every table owned by the fulfillment engine.
func Models() []any {
	return []any{
		&orderrepo.OrderDTO{},
		&orderrepo.LineDTO{},
		&orderrepo.HistoryDTO{},
		&paymentrepo.PaymentDTO{},
		&paymentrepo.AttemptDTO{},
		&paymentrepo.RefundDTO{},
		&deliveryrepo.AgentDTO{},
		&deliveryrepo.AssignmentDTO{},
		&deliveryrepo.TrackingPointDTO{},
		&deliveryrepo.DispatchRequestDTO{},
		&inventoryrepo.StockDTO{},
		&inventoryrepo.ReservationDTO{},
		&walletrepo.WalletDTO{},
		&walletrepo.TransactionDTO{},
	}
}

// Migrate creates or alters the engine's tables to match the current models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
