package queries

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GetActiveOrdersQueryHandler reads the work queue straight from the orders table.
// Results are ordered by creation time, oldest first.
type GetActiveOrdersQueryHandler struct {
	db *gorm.DB
}

func NewGetActiveOrdersQueryHandler(db *gorm.DB) GetActiveOrdersQueryHandler {
	return GetActiveOrdersQueryHandler{db: db}
}

func (h GetActiveOrdersQueryHandler) Handle(
	ctx context.Context,
	query GetActiveOrdersQuery,
) ([]GetActiveOrdersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	orders := make([]GetActiveOrdersQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			number,
			status,
			payment_status,
			total,
			active_assignment_id,
			created_at
		FROM orders
		WHERE store_id = ?
			AND status NOT IN ?
		ORDER BY created_at, id
	`, query.StoreID().Bytes(), []int{int(order.Delivered), int(order.Cancelled), int(order.Refunded)}).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resp          GetActiveOrdersQueryResponse
			id            uuid.UUID
			assignmentID  *uuid.UUID
			status        int
			paymentStatus int
			total         decimal.Decimal
		)

		if err = rows.Scan(
			&id,
			&resp.Number,
			&status,
			&paymentStatus,
			&total,
			&assignmentID,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}

		if resp.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return nil, err
		}
		if assignmentID != nil {
			aID, idErr := kernel.UUIDFromBytes(assignmentID[:])
			if idErr != nil {
				return nil, idErr
			}
			resp.ActiveAssignmentID = &aID
		}
		resp.Status = order.Status(status).String()
		resp.PaymentStatus = order.PaymentStatus(paymentStatus).String()
		resp.Total = total
		resp.CreatedAt = resp.CreatedAt.UTC()
		orders = append(orders, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
