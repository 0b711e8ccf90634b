// Package distance holds the distance and ETA estimators used to rank agents.
package distance

import (
	"context"
	"math"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

// DefaultSpeedKmh is an urban two-wheeler average.
const DefaultSpeedKmh = 20.0

// StraightLineEstimator derives an estimate from the great-circle distance and a
// constant speed. It is the fallback when no distance service is configured.
type StraightLineEstimator struct {
	speedKmh float64
}

func NewStraightLineEstimator(speedKmh float64) (*StraightLineEstimator, error) {
	if speedKmh <= 0 || math.IsNaN(speedKmh) {
		return nil, errs.NewValueIsOutOfRangeError("speed km/h", speedKmh, 0, "unbounded")
	}
	return &StraightLineEstimator{speedKmh: speedKmh}, nil
}

func (e *StraightLineEstimator) Estimate(ctx context.Context, from, to kernel.GeoPoint) (delivery.Estimate, error) {
	if err := ctx.Err(); err != nil {
		return delivery.Estimate{}, err
	}
	km, err := from.DistanceKm(to)
	if err != nil {
		return delivery.Estimate{}, err
	}
	return delivery.Estimate{
		DistanceKm: round2(km),
		EtaMinutes: round2(km / e.speedKmh * 60),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
