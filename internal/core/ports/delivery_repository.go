package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
)

// AgentRepository defines the persistence contract for delivery agents.
type AgentRepository interface {
	Add(ctx context.Context, agent *delivery.Agent) error
	Update(ctx context.Context, agent *delivery.Agent) error
	Get(ctx context.Context, id kernel.UUID) (*delivery.Agent, error)

	// ListByStore returns the agents of a store ordered by id.
	ListByStore(ctx context.Context, storeID kernel.UUID) ([]*delivery.Agent, error)
}

// AssignmentRepository defines the persistence contract for delivery assignments
// and their tracking stream.
type AssignmentRepository interface {
	// Add persists a new assignment. Returns an error wrapping errs.ErrAlreadyExists
	// when the order already has a non-terminal assignment.
	Add(ctx context.Context, assignment *delivery.Assignment) error

	Update(ctx context.Context, assignment *delivery.Assignment) error
	Get(ctx context.Context, id kernel.UUID) (*delivery.Assignment, error)

	// ListByOrder returns every assignment of an order, oldest first.
	ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*delivery.Assignment, error)

	// ListOverdue returns assigned assignments whose response deadline is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*delivery.Assignment, error)

	AppendTracking(ctx context.Context, point delivery.TrackingPoint) error
	Tracking(ctx context.Context, assignmentID kernel.UUID) ([]delivery.TrackingPoint, error)
}

// DispatchRequestRepository stores retry schedules of orders waiting for an agent.
type DispatchRequestRepository interface {
	// Save inserts a new request or updates an existing one with a version check.
	Save(ctx context.Context, request *delivery.DispatchRequest) error
	Get(ctx context.Context, orderID kernel.UUID) (*delivery.DispatchRequest, error)
	Delete(ctx context.Context, orderID kernel.UUID) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*delivery.DispatchRequest, error)
}
