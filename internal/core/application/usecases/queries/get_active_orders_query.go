package queries

import (
	"errors"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var (
	ErrGetActiveOrdersQueryIsNotConstructed = errors.New(
		"GetActiveOrdersQuery must be created via NewGetActiveOrdersQuery constructor",
	)
)

// GetActiveOrdersQuery lists the orders of one store that have not reached a
// terminal status. It is the store operator's work queue.
//
// Example:
//
//	query, err := NewGetActiveOrdersQuery(storeID)
//	if err != nil {
//	    return err
//	}
//	orders, err := handler.Handle(ctx, query)
//	for _, o := range orders {
//	    fmt.Printf("%s %s %s\n", o.Number, o.Status, o.Total)
//	}
type GetActiveOrdersQuery struct {
	storeID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetActiveOrdersQuery(storeID kernel.UUID) (GetActiveOrdersQuery, error) {
	if err := storeID.Validate(); err != nil {
		return GetActiveOrdersQuery{}, err
	}
	return GetActiveOrdersQuery{storeID: storeID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetActiveOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveOrdersQueryIsNotConstructed)
}

func (q GetActiveOrdersQuery) StoreID() kernel.UUID { return q.storeID }

// GetActiveOrdersQueryResponse is one row of the work queue.
type GetActiveOrdersQueryResponse struct {
	ID                 kernel.UUID
	Number             string
	Status             string
	PaymentStatus      string
	Total              decimal.Decimal
	ActiveAssignmentID *kernel.UUID
	CreatedAt          time.Time
}
