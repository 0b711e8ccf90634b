package delivery

import (
	"errors"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

// TrackingPoint is one location sample reported during an assignment. Points are
// append-only and never change the assignment status.
type TrackingPoint struct {
	AssignmentID kernel.UUID
	AgentID      kernel.UUID
	Location     kernel.GeoPoint
	Accuracy     *float64
	Speed        *float64
	Bearing      *float64
	RecordedAt   time.Time
}

// NewTrackingPoint validates the optional sensor readings: accuracy and speed are
// non-negative, bearing lies in [0, 360).
func NewTrackingPoint(
	assignmentID, agentID kernel.UUID,
	location kernel.GeoPoint,
	accuracy, speed, bearing *float64,
	at time.Time,
) (TrackingPoint, error) {
	var rangeErrs []error
	if accuracy != nil && *accuracy < 0 {
		rangeErrs = append(rangeErrs, errs.NewValueIsOutOfRangeError("accuracy", *accuracy, 0, "unbounded"))
	}
	if speed != nil && *speed < 0 {
		rangeErrs = append(rangeErrs, errs.NewValueIsOutOfRangeError("speed", *speed, 0, "unbounded"))
	}
	if bearing != nil && (*bearing < 0 || *bearing >= 360) {
		rangeErrs = append(rangeErrs, errs.NewValueIsOutOfRangeError("bearing", *bearing, 0, 360))
	}
	if err := errors.Join(
		assignmentID.Validate(),
		agentID.Validate(),
		location.Validate(),
		errors.Join(rangeErrs...),
	); err != nil {
		return TrackingPoint{}, err
	}
	return TrackingPoint{
		AssignmentID: assignmentID,
		AgentID:      agentID,
		Location:     location,
		Accuracy:     accuracy,
		Speed:        speed,
		Bearing:      bearing,
		RecordedAt:   at.UTC(),
	}, nil
}
