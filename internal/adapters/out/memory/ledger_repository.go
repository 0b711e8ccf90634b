package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/pkg/errs"
)

type stockRepository struct {
	uow *UnitOfWork
}

func (r *stockRepository) Add(_ context.Context, stock *inventory.Stock) error {
	if err := stock.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		if _, ok := d.stocks[stock.StoreProductID()]; ok {
			return fmt.Errorf("%w: stock of %s", errs.ErrAlreadyExists, stock.StoreProductID())
		}
		stored, err := copyStock(stock)
		if err != nil {
			return err
		}
		d.stocks[stock.StoreProductID()] = stored
		return nil
	})
}

func (r *stockRepository) Update(_ context.Context, stock *inventory.Stock) error {
	if err := stock.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		existing, ok := d.stocks[stock.StoreProductID()]
		if !ok {
			return errs.NewObjectNotFoundError("store product stock", stock.StoreProductID())
		}
		expected, _ := stock.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("store product stock", stock.StoreProductID().String())
		}
		stored, err := copyStock(stock)
		if err != nil {
			return err
		}
		d.stocks[stock.StoreProductID()] = stored
		return nil
	})
}

func (r *stockRepository) Get(_ context.Context, storeProductID kernel.UUID) (*inventory.Stock, error) {
	var out *inventory.Stock
	err := r.uow.read(func(d *data) error {
		stored, ok := d.stocks[storeProductID]
		if !ok {
			return errs.NewObjectNotFoundError("store product stock", storeProductID)
		}
		var err error
		out, err = copyStock(stored)
		return err
	})
	return out, err
}

// GetForUpdate needs no row locks here: the transaction already holds the store.
// Unknown ids are omitted.
func (r *stockRepository) GetForUpdate(_ context.Context, storeProductIDs []kernel.UUID) ([]*inventory.Stock, error) {
	ids := append([]kernel.UUID(nil), storeProductIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	var out []*inventory.Stock
	err := r.uow.read(func(d *data) error {
		for _, id := range ids {
			stored, ok := d.stocks[id]
			if !ok {
				continue
			}
			s, err := copyStock(stored)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

type reservationRepository struct {
	uow *UnitOfWork
}

func (r *reservationRepository) Add(_ context.Context, reservation *inventory.Reservation) error {
	if err := reservation.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		if _, ok := d.reservations[reservation.ID()]; ok {
			return fmt.Errorf("%w: reservation %s", errs.ErrAlreadyExists, reservation.ID())
		}
		stored, err := copyReservation(reservation)
		if err != nil {
			return err
		}
		d.reservations[reservation.ID()] = stored
		return nil
	})
}

func (r *reservationRepository) Update(_ context.Context, reservation *inventory.Reservation) error {
	if err := reservation.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		existing, ok := d.reservations[reservation.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("reservation", reservation.ID())
		}
		expected, _ := reservation.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("reservation", reservation.ID().String())
		}
		stored, err := copyReservation(reservation)
		if err != nil {
			return err
		}
		d.reservations[reservation.ID()] = stored
		return nil
	})
}

func (r *reservationRepository) ListByOrder(_ context.Context, orderID kernel.UUID) ([]*inventory.Reservation, error) {
	return r.list(func(res *inventory.Reservation) bool { return res.OrderID().IsEqual(orderID) }, 0)
}

func (r *reservationRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	return r.list(func(res *inventory.Reservation) bool { return res.IsDue(now) }, limit)
}

func (r *reservationRepository) list(match func(*inventory.Reservation) bool, limit int) ([]*inventory.Reservation, error) {
	var out []*inventory.Reservation
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.reservations {
			if !match(stored) {
				continue
			}
			res, err := copyReservation(stored)
			if err != nil {
				return err
			}
			out = append(out, res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().Less(out[j].ID())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type walletRepository struct {
	uow *UnitOfWork
}

func (r *walletRepository) Add(_ context.Context, w *wallet.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		if _, ok := d.walletByCustomer[w.CustomerID()]; ok {
			return fmt.Errorf("%w: wallet of customer %s", errs.ErrAlreadyExists, w.CustomerID())
		}
		stored, err := copyWallet(w)
		if err != nil {
			return err
		}
		d.wallets[w.ID()] = stored
		d.walletByCustomer[w.CustomerID()] = w.ID()
		return nil
	})
}

func (r *walletRepository) Update(_ context.Context, w *wallet.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		existing, ok := d.wallets[w.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("wallet", w.ID())
		}
		expected, _ := w.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("wallet", w.ID().String())
		}
		stored, err := copyWallet(w)
		if err != nil {
			return err
		}
		d.wallets[w.ID()] = stored
		return nil
	})
}

func (r *walletRepository) GetByCustomer(_ context.Context, customerID kernel.UUID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.uow.read(func(d *data) error {
		id, ok := d.walletByCustomer[customerID]
		if !ok {
			return errs.NewObjectNotFoundError("wallet of customer", customerID)
		}
		var err error
		out, err = copyWallet(d.wallets[id])
		return err
	})
	return out, err
}

func (r *walletRepository) ListCustomers(_ context.Context, after kernel.UUID, limit int) ([]kernel.UUID, error) {
	var out []kernel.UUID
	err := r.uow.read(func(d *data) error {
		for customerID := range d.walletByCustomer {
			if after.Less(customerID) {
				out = append(out, customerID)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// AddTransaction appends to the log. Transactions are immutable, so the instance
// itself is kept.
func (r *walletRepository) AddTransaction(_ context.Context, tx *wallet.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	return r.uow.write(func(d *data) error {
		if _, ok := d.wallets[tx.WalletID()]; !ok {
			return errs.NewObjectNotFoundError("wallet", tx.WalletID())
		}
		for _, existing := range d.transactions[tx.WalletID()] {
			if existing.Sequence() == tx.Sequence() ||
				(tx.IdempotencyKey() != "" && existing.IdempotencyKey() == tx.IdempotencyKey()) {
				return fmt.Errorf("%w: wallet transaction %d", errs.ErrAlreadyExists, tx.Sequence())
			}
		}
		log := append([]*wallet.Transaction(nil), d.transactions[tx.WalletID()]...)
		d.transactions[tx.WalletID()] = append(log, tx)
		return nil
	})
}

func (r *walletRepository) FindTransaction(_ context.Context, walletID kernel.UUID, idempotencyKey string) (*wallet.Transaction, error) {
	var out *wallet.Transaction
	err := r.uow.read(func(d *data) error {
		for _, tx := range d.transactions[walletID] {
			if idempotencyKey != "" && tx.IdempotencyKey() == idempotencyKey {
				out = tx
				return nil
			}
		}
		return errs.NewObjectNotFoundError("wallet transaction", idempotencyKey)
	})
	return out, err
}

func (r *walletRepository) Transactions(_ context.Context, walletID kernel.UUID) ([]*wallet.Transaction, error) {
	var out []*wallet.Transaction
	err := r.uow.read(func(d *data) error {
		out = append(out, d.transactions[walletID]...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence() < out[j].Sequence() })
	return out, err
}
