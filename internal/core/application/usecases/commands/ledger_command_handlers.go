package commands

import (
	"context"
	"errors"
	"log/slog"

	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

type RestockCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	inventory  *ledger.Inventory
}

func NewRestockCommandHandler(uowFactory ports.UnitOfWorkFactory, inventory *ledger.Inventory) RestockCommandHandler {
	return RestockCommandHandler{uowFactory: uowFactory, inventory: inventory}
}

func (h RestockCommandHandler) Handle(ctx context.Context, cmd RestockCommand) (*inventory.Stock, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var stock *inventory.Stock
	err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		var err error
		stock, err = h.inventory.Restock(ctx, uow, cmd.StoreProductID(), cmd.Quantity())
		return err
	})
	return stock, err
}

type CreditWalletCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	wallets    *ledger.Wallet
	clock      ports.Clock
}

func NewCreditWalletCommandHandler(uowFactory ports.UnitOfWorkFactory, wallets *ledger.Wallet, clock ports.Clock) CreditWalletCommandHandler {
	return CreditWalletCommandHandler{uowFactory: uowFactory, wallets: wallets, clock: clock}
}

func (h CreditWalletCommandHandler) Handle(ctx context.Context, cmd CreditWalletCommand) (*wallet.Transaction, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var tx *wallet.Transaction
	err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		var err error
		tx, err = h.wallets.Credit(ctx, uow, cmd.CustomerID(), wallet.Entry{
			Type:           wallet.TransactionCredit,
			Amount:         cmd.Amount(),
			Description:    cmd.Description(),
			IdempotencyKey: cmd.IdempotencyKey(),
		}, h.clock.Now())
		return err
	})
	return tx, err
}

// ExpireReservationsCommandHandler releases reservations whose hold ran out. It
// returns the orders that lost stock; cancelling them is left to the caller.
type ExpireReservationsCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	inventory  *ledger.Inventory
	clock      ports.Clock
	logger     *slog.Logger
}

func NewExpireReservationsCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	inventory *ledger.Inventory,
	clock ports.Clock,
	logger *slog.Logger,
) ExpireReservationsCommandHandler {
	return ExpireReservationsCommandHandler{
		uowFactory: uowFactory,
		inventory:  inventory,
		clock:      clock,
		logger:     logger.With("component", "expire_reservations"),
	}
}

func (h ExpireReservationsCommandHandler) Handle(ctx context.Context, limit int) ([]kernel.UUID, error) {
	var orderIDs []kernel.UUID
	err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		var err error
		orderIDs, err = h.inventory.ExpireDue(ctx, uow, h.clock.Now(), limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(orderIDs) > 0 {
		h.logger.InfoContext(ctx, "reservations expired", "orders", len(orderIDs))
	}
	return orderIDs, nil
}

// ReconcileWalletsCommandHandler replays every wallet's transaction log against its
// stored balance. A mismatch is alerted and counted by the ledger and does not stop
// the sweep.
type ReconcileWalletsCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	wallets    *ledger.Wallet
	logger     *slog.Logger
}

func NewReconcileWalletsCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	wallets *ledger.Wallet,
	logger *slog.Logger,
) ReconcileWalletsCommandHandler {
	return ReconcileWalletsCommandHandler{
		uowFactory: uowFactory,
		wallets:    wallets,
		logger:     logger.With("component", "reconcile_wallets"),
	}
}

// ReconcileResult summarises one sweep.
type ReconcileResult struct {
	Checked    int
	Mismatched []kernel.UUID
}

// Handle walks the wallets in pages of batch customers.
func (h ReconcileWalletsCommandHandler) Handle(ctx context.Context, batch int) (ReconcileResult, error) {
	if batch <= 0 {
		return ReconcileResult{}, errs.NewValueIsOutOfRangeError("batch", batch, 1, "unbounded")
	}

	var result ReconcileResult
	var after kernel.UUID
	for {
		var page []kernel.UUID
		err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
			var err error
			page, err = uow.WalletRepository().ListCustomers(ctx, after, batch)
			return err
		})
		if err != nil {
			return result, err
		}

		for _, customerID := range page {
			err = inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
				return h.wallets.Reconcile(ctx, uow, customerID)
			})
			switch {
			case err == nil:
			case errors.Is(err, errs.ErrInvariantViolation):
				result.Mismatched = append(result.Mismatched, customerID)
			default:
				return result, err
			}
			result.Checked++
		}

		if len(page) < batch {
			break
		}
		after = page[len(page)-1]
	}

	h.logger.InfoContext(ctx, "wallets reconciled", "checked", result.Checked, "mismatched", len(result.Mismatched))
	return result, nil
}
