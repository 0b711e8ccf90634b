// Package memory is an in-process implementation of the unit of work and every
// repository port. Transactions are serialized: Begin takes the store lock and
// works on a private copy of the data, Commit publishes the copy. Versions are
// checked on update exactly as the postgres adapter does, so application code
// behaves the same on both.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
)

// ErrInvalidTransaction is returned by Commit and Rollback without an open transaction.
var ErrInvalidTransaction = errors.New("no transaction in progress")

type data struct {
	orders       map[kernel.UUID]*order.Order
	orderNumbers map[string]kernel.UUID
	history      map[kernel.UUID][]order.HistoryEntry

	payments map[kernel.UUID]*payment.Payment
	attempts map[kernel.UUID][]payment.Attempt
	refunds  map[kernel.UUID]*payment.Refund

	agents      map[kernel.UUID]*delivery.Agent
	assignments map[kernel.UUID]*delivery.Assignment
	tracking    map[kernel.UUID][]delivery.TrackingPoint
	dispatch    map[kernel.UUID]*delivery.DispatchRequest

	stocks       map[kernel.UUID]*inventory.Stock
	reservations map[kernel.UUID]*inventory.Reservation

	wallets          map[kernel.UUID]*wallet.Wallet
	walletByCustomer map[kernel.UUID]kernel.UUID
	transactions     map[kernel.UUID][]*wallet.Transaction
}

func newData() *data {
	return &data{
		orders:           make(map[kernel.UUID]*order.Order),
		orderNumbers:     make(map[string]kernel.UUID),
		history:          make(map[kernel.UUID][]order.HistoryEntry),
		payments:         make(map[kernel.UUID]*payment.Payment),
		attempts:         make(map[kernel.UUID][]payment.Attempt),
		refunds:          make(map[kernel.UUID]*payment.Refund),
		agents:           make(map[kernel.UUID]*delivery.Agent),
		assignments:      make(map[kernel.UUID]*delivery.Assignment),
		tracking:         make(map[kernel.UUID][]delivery.TrackingPoint),
		dispatch:         make(map[kernel.UUID]*delivery.DispatchRequest),
		stocks:           make(map[kernel.UUID]*inventory.Stock),
		reservations:     make(map[kernel.UUID]*inventory.Reservation),
		wallets:          make(map[kernel.UUID]*wallet.Wallet),
		walletByCustomer: make(map[kernel.UUID]kernel.UUID),
		transactions:     make(map[kernel.UUID][]*wallet.Transaction),
	}
}

// clone copies the maps. Stored values are private copies that are replaced, never
// mutated, and log slices are only ever extended through a fresh copy, so a shallow
// copy isolates the transaction.
func (d *data) clone() *data {
	return &data{
		orders:           maps.Clone(d.orders),
		orderNumbers:     maps.Clone(d.orderNumbers),
		history:          maps.Clone(d.history),
		payments:         maps.Clone(d.payments),
		attempts:         maps.Clone(d.attempts),
		refunds:          maps.Clone(d.refunds),
		agents:           maps.Clone(d.agents),
		assignments:      maps.Clone(d.assignments),
		tracking:         maps.Clone(d.tracking),
		dispatch:         maps.Clone(d.dispatch),
		stocks:           maps.Clone(d.stocks),
		reservations:     maps.Clone(d.reservations),
		wallets:          maps.Clone(d.wallets),
		walletByCustomer: maps.Clone(d.walletByCustomer),
		transactions:     maps.Clone(d.transactions),
	}
}

// Store holds the committed data shared by every unit of work created from it.
type Store struct {
	txLock    sync.Mutex
	mu        sync.RWMutex
	committed *data
}

func NewStore() *Store {
	return &Store{committed: newData()}
}

// UnitOfWorkFactory creates units of work over one Store.
type UnitOfWorkFactory struct {
	store *Store
}

func NewUnitOfWorkFactory(store *Store) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store}
}

func (f *UnitOfWorkFactory) Create() ports.UnitOfWork {
	return &UnitOfWork{store: f.store}
}

// UnitOfWork runs repository calls against its transaction's working copy, or
// directly against the committed data when no transaction is open.
type UnitOfWork struct {
	store   *Store
	working *data
	tracked []kernel.EventSource
	events  []kernel.DomainEvent
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.working != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.txLock.Lock()
	u.store.mu.RLock()
	u.working = u.store.committed.clone()
	u.store.mu.RUnlock()
	u.tracked = nil
	u.events = nil
	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	if u.working == nil {
		return ErrInvalidTransaction
	}
	u.store.mu.Lock()
	u.store.committed = u.working
	u.store.mu.Unlock()
	u.working = nil
	u.store.txLock.Unlock()

	u.events = drain(u.tracked)
	u.tracked = nil
	return nil
}

func (u *UnitOfWork) Rollback(_ context.Context) error {
	if u.working == nil {
		return ErrInvalidTransaction
	}
	u.working = nil
	u.tracked = nil
	u.store.txLock.Unlock()
	return nil
}

func (u *UnitOfWork) CommittedEvents() []kernel.DomainEvent {
	events := u.events
	u.events = nil
	return events
}

func (u *UnitOfWork) OrderRepository() ports.OrderRepository           { return &orderRepository{uow: u} }
func (u *UnitOfWork) PaymentRepository() ports.PaymentRepository       { return &paymentRepository{uow: u} }
func (u *UnitOfWork) AgentRepository() ports.AgentRepository           { return &agentRepository{uow: u} }
func (u *UnitOfWork) AssignmentRepository() ports.AssignmentRepository { return &assignmentRepository{uow: u} }
func (u *UnitOfWork) StockRepository() ports.StockRepository           { return &stockRepository{uow: u} }
func (u *UnitOfWork) WalletRepository() ports.WalletRepository         { return &walletRepository{uow: u} }

func (u *UnitOfWork) DispatchRequestRepository() ports.DispatchRequestRepository {
	return &dispatchRequestRepository{uow: u}
}

func (u *UnitOfWork) ReservationRepository() ports.ReservationRepository {
	return &reservationRepository{uow: u}
}

// read runs fn on the data visible to this unit of work.
func (u *UnitOfWork) read(fn func(d *data) error) error {
	if u.working != nil {
		return fn(u.working)
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	return fn(u.store.committed)
}

// write runs fn on the working copy, or on a copy that is committed right away
// when fn succeeds outside a transaction.
func (u *UnitOfWork) write(fn func(d *data) error) error {
	if u.working != nil {
		return fn(u.working)
	}
	u.store.txLock.Lock()
	defer u.store.txLock.Unlock()

	u.store.mu.RLock()
	d := u.store.committed.clone()
	u.store.mu.RUnlock()

	if err := fn(d); err != nil {
		return err
	}
	u.store.mu.Lock()
	u.store.committed = d
	u.store.mu.Unlock()
	return nil
}

// track remembers an aggregate whose events are released on commit. Writes outside
// a transaction release nothing.
func (u *UnitOfWork) track(source kernel.EventSource) {
	if u.working == nil {
		source.ClearDomainEvents()
		return
	}
	for _, s := range u.tracked {
		if s == source {
			return
		}
	}
	u.tracked = append(u.tracked, source)
}

func drain(sources []kernel.EventSource) []kernel.DomainEvent {
	var events []kernel.DomainEvent
	for _, s := range sources {
		events = append(events, s.DomainEvents()...)
		s.ClearDomainEvents()
	}
	return events
}
