// Package ledger implements the Inventory Ledger and the Wallet Ledger. Both run
// inside the caller's unit of work, so their effects commit or roll back together
// with the order, payment or refund that caused them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/logging"
	"fulfillment/internal/pkg/metrics"
)

// Line is a requested quantity of one store product.
type Line struct {
	StoreProductID kernel.UUID
	Quantity       int
}

// Inventory reserves, commits and releases stock on behalf of orders.
type Inventory struct {
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewInventory(reservationTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) (*Inventory, error) {
	if reservationTTL <= 0 {
		return nil, errs.NewValueIsInvalidErrorWithCause("reservation ttl", fmt.Errorf("%s is not positive", reservationTTL))
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	return &Inventory{
		ttl:     reservationTTL,
		logger:  logger.With("component", "inventory_ledger"),
		metrics: m,
	}, nil
}

func (l *Inventory) ReservationTTL() time.Duration {
	return l.ttl
}

// Reserve holds every line for orderID, all or nothing. Rows are locked in ascending
// store-product order; if any line cannot be satisfied nothing is written and the
// first OutOfStockError is returned.
func (l *Inventory) Reserve(
	ctx context.Context,
	uow ports.UnitOfWork,
	orderID kernel.UUID,
	lines []Line,
	now time.Time,
) ([]*inventory.Reservation, error) {
	if len(lines) == 0 {
		return nil, errs.NewValueIsRequiredError("lines")
	}
	requested := make(map[kernel.UUID]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, errs.NewValueIsInvalidErrorWithCause("quantity",
				fmt.Errorf("%d is not greater than 0", line.Quantity))
		}
		requested[line.StoreProductID] += line.Quantity
	}

	rows, err := l.lock(ctx, uow, sortedIDs(requested))
	if err != nil {
		return nil, err
	}

	for _, id := range sortedIDs(requested) {
		row, ok := rows[id]
		if !ok {
			l.metrics.Reservation("out_of_stock", 1)
			return nil, errs.NewOutOfStockError(id.String(), requested[id], 0)
		}
		if err = row.Reserve(requested[id]); err != nil {
			l.observe(err, "out_of_stock")
			return nil, err
		}
	}

	reservations := make([]*inventory.Reservation, 0, len(requested))
	for _, id := range sortedIDs(requested) {
		if err = uow.StockRepository().Update(ctx, rows[id]); err != nil {
			return nil, err
		}
		r, err := inventory.NewReservation(kernel.NewUUID(), orderID, id, requested[id], now, l.ttl)
		if err != nil {
			return nil, err
		}
		if err = uow.ReservationRepository().Add(ctx, r); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}

	l.metrics.Reservation("reserved", len(reservations))
	return reservations, nil
}

// Commit turns the order's reservations into a permanent stock decrement. A
// reservation that expired in the meantime is re-reserved first if stock allows,
// otherwise Commit fails with OutOfStockError.
func (l *Inventory) Commit(ctx context.Context, uow ports.UnitOfWork, orderID kernel.UUID, now time.Time) error {
	reservations, err := uow.ReservationRepository().ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(reservations) == 0 {
		return errs.NewInvariantViolationError("order", orderID.String(), "no inventory reservations to commit")
	}

	rows, err := l.lock(ctx, uow, reservationProducts(reservations))
	if err != nil {
		return err
	}

	for _, r := range reservations {
		row, ok := rows[r.StoreProductID()]
		if !ok {
			return errs.NewObjectNotFoundError("store product stock", r.StoreProductID())
		}

		switch r.Status() {
		case inventory.ReservationCommitted:
			continue
		case inventory.ReservationExpired:
			if err = row.Reserve(r.Quantity()); err != nil {
				l.observe(err, "out_of_stock")
				return err
			}
			if err = r.Revive(now, l.ttl); err != nil {
				return err
			}
		case inventory.ReservationActive:
		default:
			return errs.NewInvalidTransitionError("reservation", r.Status(), inventory.ReservationCommitted)
		}

		if err = row.CommitReserved(r.Quantity()); err != nil {
			l.observe(err, "")
			return err
		}
		if err = r.Commit(); err != nil {
			return err
		}
		if err = uow.ReservationRepository().Update(ctx, r); err != nil {
			return err
		}
	}

	if err = l.save(ctx, uow, rows); err != nil {
		return err
	}
	l.metrics.Reservation("committed", len(reservations))
	return nil
}

// Release gives back everything the order holds: active reservations return to the
// available pool, committed ones are restocked. Released and expired reservations
// are left as they are, so Release is safe to repeat.
func (l *Inventory) Release(ctx context.Context, uow ports.UnitOfWork, orderID kernel.UUID) error {
	reservations, err := uow.ReservationRepository().ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	var open []*inventory.Reservation
	for _, r := range reservations {
		if r.Status() == inventory.ReservationActive || r.Status() == inventory.ReservationCommitted {
			open = append(open, r)
		}
	}
	if len(open) == 0 {
		return nil
	}

	rows, err := l.lock(ctx, uow, reservationProducts(open))
	if err != nil {
		return err
	}

	for _, r := range open {
		row, ok := rows[r.StoreProductID()]
		if !ok {
			return errs.NewObjectNotFoundError("store product stock", r.StoreProductID())
		}
		if r.Status() == inventory.ReservationActive {
			err = row.ReleaseReserved(r.Quantity())
		} else {
			err = row.Restock(r.Quantity())
		}
		if err != nil {
			l.observe(err, "")
			return err
		}
		if err = r.Release(); err != nil {
			return err
		}
		if err = uow.ReservationRepository().Update(ctx, r); err != nil {
			return err
		}
	}

	if err = l.save(ctx, uow, rows); err != nil {
		return err
	}
	l.metrics.Reservation("released", len(open))
	return nil
}

// ExpireDue releases up to limit active reservations whose expiry passed and returns
// the ids of the orders they belonged to.
func (l *Inventory) ExpireDue(ctx context.Context, uow ports.UnitOfWork, now time.Time, limit int) ([]kernel.UUID, error) {
	due, err := uow.ReservationRepository().ListDue(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	rows, err := l.lock(ctx, uow, reservationProducts(due))
	if err != nil {
		return nil, err
	}

	seen := make(map[kernel.UUID]struct{})
	var orderIDs []kernel.UUID
	for _, r := range due {
		row, ok := rows[r.StoreProductID()]
		if !ok {
			return nil, errs.NewObjectNotFoundError("store product stock", r.StoreProductID())
		}
		if err = row.ReleaseReserved(r.Quantity()); err != nil {
			l.observe(err, "")
			return nil, err
		}
		if err = r.Expire(now); err != nil {
			return nil, err
		}
		if err = uow.ReservationRepository().Update(ctx, r); err != nil {
			return nil, err
		}
		if _, ok := seen[r.OrderID()]; !ok {
			seen[r.OrderID()] = struct{}{}
			orderIDs = append(orderIDs, r.OrderID())
		}
	}

	if err = l.save(ctx, uow, rows); err != nil {
		return nil, err
	}
	l.metrics.Reservation("expired", len(due))
	return orderIDs, nil
}

// Restock adds quantity units on hand for a store product.
func (l *Inventory) Restock(ctx context.Context, uow ports.UnitOfWork, storeProductID kernel.UUID, quantity int) (*inventory.Stock, error) {
	rows, err := l.lock(ctx, uow, []kernel.UUID{storeProductID})
	if err != nil {
		return nil, err
	}
	row, ok := rows[storeProductID]
	if !ok {
		return nil, errs.NewObjectNotFoundError("store product stock", storeProductID)
	}
	if err = row.Restock(quantity); err != nil {
		l.observe(err, "")
		return nil, err
	}
	if err = uow.StockRepository().Update(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (l *Inventory) lock(ctx context.Context, uow ports.UnitOfWork, ids []kernel.UUID) (map[kernel.UUID]*inventory.Stock, error) {
	stocks, err := uow.StockRepository().GetForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := make(map[kernel.UUID]*inventory.Stock, len(stocks))
	for _, s := range stocks {
		rows[s.StoreProductID()] = s
	}
	return rows, nil
}

func (l *Inventory) save(ctx context.Context, uow ports.UnitOfWork, rows map[kernel.UUID]*inventory.Stock) error {
	for _, id := range sortedKeys(rows) {
		if err := uow.StockRepository().Update(ctx, rows[id]); err != nil {
			return err
		}
	}
	return nil
}

// observe reports invariant violations as alerts and counts business rejections.
func (l *Inventory) observe(err error, rejection string) {
	var violation *errs.InvariantViolationError
	if errors.As(err, &violation) {
		l.metrics.InvariantViolation(violation.Entity)
		logging.Alert(l.logger, "inventory row frozen",
			"store_product_id", violation.ID,
			"detail", violation.Detail)
		return
	}
	if rejection != "" && errors.Is(err, errs.ErrOutOfStock) {
		l.metrics.Reservation(rejection, 1)
	}
}

func sortedIDs(m map[kernel.UUID]int) []kernel.UUID {
	ids := make([]kernel.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func sortedKeys(m map[kernel.UUID]*inventory.Stock) []kernel.UUID {
	ids := make([]kernel.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func reservationProducts(reservations []*inventory.Reservation) []kernel.UUID {
	qty := make(map[kernel.UUID]int, len(reservations))
	for _, r := range reservations {
		qty[r.StoreProductID()] += r.Quantity()
	}
	return sortedIDs(qty)
}
