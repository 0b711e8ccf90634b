package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"
)

// UnitOfWorkFactory creates new UnitOfWork instances for each request/command.
// This ensures proper isolation between concurrent operations.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork represents a business transaction boundary.
// It provides transaction control and tracks aggregate changes.
// Client code must explicitly manage transaction lifecycle.
type UnitOfWork interface {
	// Begin starts a new database transaction.
	Begin(ctx context.Context) error

	// Commit commits the current transaction.
	// Returns error if no active transaction or commit fails.
	Commit(ctx context.Context) error

	// Rollback rolls back the current transaction.
	// Returns error if no active transaction or rollback fails.
	Rollback(ctx context.Context) error

	// CommittedEvents drains the domain events raised by aggregates saved in the last
	// committed transaction. It returns nothing before Commit succeeds.
	CommittedEvents() []kernel.DomainEvent

	OrderRepository() OrderRepository
	PaymentRepository() PaymentRepository
	AgentRepository() AgentRepository
	AssignmentRepository() AssignmentRepository
	DispatchRequestRepository() DispatchRequestRepository
	StockRepository() StockRepository
	ReservationRepository() ReservationRepository
	WalletRepository() WalletRepository
}
