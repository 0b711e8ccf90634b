package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
)

// DistanceEstimator is the external distance-matrix lookup.
type DistanceEstimator interface {
	Estimate(ctx context.Context, from, to kernel.GeoPoint) (delivery.Estimate, error)
}
