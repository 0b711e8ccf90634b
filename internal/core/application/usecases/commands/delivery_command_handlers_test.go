package commands_test

import (
	"testing"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) respond(t *testing.T, a *delivery.Assignment, agentID kernel.UUID, accept bool) error {
	t.Helper()
	cmd, err := commands.NewRespondAssignmentCommand(a.ID(), agentID, accept, "")
	require.NoError(t, err)
	return commands.NewRespondAssignmentCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd)
}

func (f *fixture) completeLeg(t *testing.T, assignmentID kernel.UUID, target delivery.AssignmentStatus, proof *delivery.ProofOfDelivery) error {
	t.Helper()
	return f.completeLegAs(t, assignmentID, f.assignment(t, assignmentID).AgentID(), target, proof)
}

func (f *fixture) completeLegAs(
	t *testing.T,
	assignmentID, agentID kernel.UUID,
	target delivery.AssignmentStatus,
	proof *delivery.ProofOfDelivery,
) error {
	t.Helper()
	cmd, err := commands.NewCompleteLegCommand(assignmentID, agentID, target, proof)
	require.NoError(t, err)
	return commands.NewCompleteLegCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd)
}

func (f *fixture) timeoutAssignments(t *testing.T) int {
	t.Helper()
	n, err := commands.NewTimeoutAssignmentsCommandHandler(f.uow, f.bus, f.clock, f.logger).Handle(t.Context(), 10)
	require.NoError(t, err)
	return n
}

// acceptedAssignment is a confirmed order taken by a single nearby agent.
func (f *fixture) acceptedAssignment(t *testing.T) (*order.Order, *delivery.Assignment) {
	t.Helper()
	o, _ := f.confirmedOrder(t)
	agent := f.addAgent(t, "A-1", 12.9716, 77.5996)
	a, err := f.assign(t, o.ID())
	require.NoError(t, err)
	require.NoError(t, f.respond(t, a, agent.ID(), true))
	return o, f.assignment(t, a.ID())
}

func TestAssignAgentCommandHandler(t *testing.T) {
	t.Run("should offer the order to the nearest free agent", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		far := f.addAgent(t, "FAR", 12.9716, 77.6346)
		near := f.addAgent(t, "NEAR", 12.9716, 77.5996)

		a, err := f.assign(t, o.ID())

		require.NoError(t, err)
		assert.Equal(t, near.ID(), a.AgentID())
		assert.Equal(t, delivery.AssignmentAssigned, a.Status())
		assert.Equal(t, f.clock.Now().Add(responseWindow), a.ResponseDeadline())
		assert.Greater(t, a.Estimate().DistanceKm, 0.0)
		assert.Less(t, a.Estimate().DistanceKm, 1.0)

		require.NotNil(t, f.agent(t, near.ID()).ActiveAssignmentID())
		assert.True(t, f.agent(t, far.ID()).IsFree())
		stored := f.order(t, o.ID())
		require.NotNil(t, stored.ActiveAssignmentID())
		assert.Equal(t, a.ID(), *stored.ActiveAssignmentID())
		assert.Contains(t, f.events.Names(), delivery.AssignmentChangedEventName)
	})

	t.Run("should refuse a second assignment for the same order", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		f.addAgent(t, "A-1", 12.9716, 77.5996)
		f.addAgent(t, "A-2", 12.9716, 77.6046)
		_, err := f.assign(t, o.ID())
		require.NoError(t, err)

		_, err = f.assign(t, o.ID())

		assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	})

	t.Run("should skip agents with a stale location", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		f.addAgent(t, "STALE", 12.9716, 77.5996)
		f.clock.Advance(freshnessWindow + time.Minute)
		fresh := f.addAgent(t, "FRESH", 12.9716, 77.6346)

		a, err := f.assign(t, o.ID())

		require.NoError(t, err)
		assert.Equal(t, fresh.ID(), a.AgentID())
	})

	t.Run("should refuse an order that was never confirmed", func(t *testing.T) {
		f := newFixture(t)
		o := f.mustPlaceOrder(t)
		f.addAgent(t, "A-1", 12.9716, 77.5996)

		_, err := f.assign(t, o.ID())

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})

	t.Run("should schedule a retry and give up after the last attempt", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)

		_, err := f.assign(t, o.ID())

		require.ErrorIs(t, err, errs.ErrNoAgentAvailable)
		assert.NotErrorIs(t, err, errs.ErrAttemptsExhausted)
		request, err := f.uow.Create().DispatchRequestRepository().Get(t.Context(), o.ID())
		require.NoError(t, err)
		assert.Equal(t, 1, request.Attempts())
		assert.Equal(t, f.clock.Now().Add(f.policy.RetryDelay(1)), request.NextAttemptAt())
		assert.False(t, request.Exhausted())

		f.clock.Advance(f.policy.RetryDelay(1))
		_, err = f.assign(t, o.ID())

		assert.ErrorIs(t, err, errs.ErrNoAgentAvailable)
		assert.ErrorIs(t, err, errs.ErrAttemptsExhausted)
		request, err = f.uow.Create().DispatchRequestRepository().Get(t.Context(), o.ID())
		require.NoError(t, err)
		assert.True(t, request.Exhausted())
	})

	t.Run("should drop the retry schedule once an agent is found", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		_, err := f.assign(t, o.ID())
		require.ErrorIs(t, err, errs.ErrNoAgentAvailable)
		f.addAgent(t, "LATE", 12.9716, 77.5996)

		_, err = f.assign(t, o.ID())

		require.NoError(t, err)
		_, err = f.uow.Create().DispatchRequestRepository().Get(t.Context(), o.ID())
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}

func TestTimeoutAssignmentsCommandHandler(t *testing.T) {
	t.Run("should cancel an unanswered offer and free agent and order", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		first := f.addAgent(t, "A-1", 12.9716, 77.5996)
		second := f.addAgent(t, "A-2", 12.9716, 77.6346)
		a, err := f.assign(t, o.ID())
		require.NoError(t, err)
		require.Equal(t, first.ID(), a.AgentID())

		assert.Zero(t, f.timeoutAssignments(t), "offer is still within its window")

		f.clock.Advance(3 * time.Minute)
		assert.Equal(t, 1, f.timeoutAssignments(t))

		timedOut := f.assignment(t, a.ID())
		assert.Equal(t, delivery.AssignmentCancelled, timedOut.Status())
		assert.Equal(t, delivery.ReasonResponseTimeout, timedOut.Reason())
		assert.True(t, f.agent(t, first.ID()).IsFree())
		assert.Nil(t, f.order(t, o.ID()).ActiveAssignmentID())

		next, err := f.assign(t, o.ID())
		require.NoError(t, err)
		assert.Equal(t, second.ID(), next.AgentID())
	})

	t.Run("should leave accepted offers alone", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)

		f.clock.Advance(10 * time.Minute)

		assert.Zero(t, f.timeoutAssignments(t))
		assert.Equal(t, delivery.AssignmentAccepted, f.assignment(t, a.ID()).Status())
	})
}

func TestRespondAssignmentCommandHandler(t *testing.T) {
	t.Run("should record an acceptance within the window", func(t *testing.T) {
		f := newFixture(t)

		_, a := f.acceptedAssignment(t)

		assert.Equal(t, delivery.AssignmentAccepted, a.Status())
		require.NotNil(t, a.AcceptedAt())
		assert.Equal(t, f.clock.Now(), *a.AcceptedAt())
	})

	t.Run("should free agent and order on rejection", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		agent := f.addAgent(t, "A-1", 12.9716, 77.5996)
		a, err := f.assign(t, o.ID())
		require.NoError(t, err)

		require.NoError(t, f.respond(t, a, agent.ID(), false))

		rejected := f.assignment(t, a.ID())
		assert.Equal(t, delivery.AssignmentCancelled, rejected.Status())
		assert.True(t, f.agent(t, agent.ID()).IsFree())
		assert.Nil(t, f.order(t, o.ID()).ActiveAssignmentID())
	})

	t.Run("should refuse an answer from another agent", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		f.addAgent(t, "A-1", 12.9716, 77.5996)
		a, err := f.assign(t, o.ID())
		require.NoError(t, err)

		err = f.respond(t, a, kernel.NewUUID(), true)

		assert.ErrorIs(t, err, errs.ErrNotPermitted)
	})

	t.Run("should refuse an acceptance after the window closed", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		agent := f.addAgent(t, "A-1", 12.9716, 77.5996)
		a, err := f.assign(t, o.ID())
		require.NoError(t, err)
		f.clock.Advance(responseWindow + time.Second)

		err = f.respond(t, a, agent.ID(), true)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Equal(t, delivery.AssignmentAssigned, f.assignment(t, a.ID()).Status())
	})
}

func TestCompleteLegCommandHandler(t *testing.T) {
	proof := &delivery.ProofOfDelivery{Method: delivery.ProofOTP, OTP: "4821"}

	t.Run("should refuse pickup before the order is packed", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)

		err := f.completeLeg(t, a.ID(), delivery.AssignmentPickedUp, nil)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Equal(t, delivery.AssignmentAccepted, f.assignment(t, a.ID()).Status())
	})

	t.Run("should deliver with proof and free the agent", func(t *testing.T) {
		f := newFixture(t)
		o, a := f.acceptedAssignment(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))

		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentPickedUp, nil))
		f.clock.Advance(12 * time.Minute)
		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentInTransit, nil))

		err := f.completeLeg(t, a.ID(), delivery.AssignmentDelivered, nil)
		require.ErrorIs(t, err, errs.ErrProofRequired)

		err = f.completeLeg(t, a.ID(), delivery.AssignmentDelivered, &delivery.ProofOfDelivery{Method: delivery.ProofPhoto})
		require.ErrorIs(t, err, errs.ErrProofRequired)

		f.clock.Advance(8 * time.Minute)
		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentDelivered, proof))

		delivered := f.assignment(t, a.ID())
		assert.Equal(t, delivery.AssignmentDelivered, delivered.Status())
		require.NotNil(t, delivered.Proof())
		assert.Equal(t, "4821", delivered.Proof().OTP)
		assert.Equal(t, f.clock.Now(), delivered.Proof().CollectedAt)
		require.NotNil(t, delivered.ActualMinutes())
		assert.InDelta(t, 20.0, *delivered.ActualMinutes(), 0.001)

		agent := f.agent(t, a.AgentID())
		assert.True(t, agent.IsFree())
		assert.Equal(t, 1, agent.TotalDeliveries())
		assert.Equal(t, 1, agent.SuccessfulDeliveries())
	})

	t.Run("should refuse a leg reported by another agent", func(t *testing.T) {
		f := newFixture(t)
		o, a := f.acceptedAssignment(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))

		err := f.completeLegAs(t, a.ID(), kernel.NewUUID(), delivery.AssignmentPickedUp, nil)

		assert.ErrorIs(t, err, errs.ErrNotPermitted)
		assert.Equal(t, delivery.AssignmentAccepted, f.assignment(t, a.ID()).Status())
		assert.Equal(t, order.ReadyForPickup, f.order(t, o.ID()).Status())
	})

	t.Run("should refuse skipping a leg", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)

		err := f.completeLeg(t, a.ID(), delivery.AssignmentDelivered, proof)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})
}

func TestFailAssignmentCommandHandler(t *testing.T) {
	t.Run("should count the failure and free agent and order", func(t *testing.T) {
		f := newFixture(t)
		o, a := f.acceptedAssignment(t)
		cmd, err := commands.NewFailAssignmentCommand(a.ID(), "vehicle breakdown")
		require.NoError(t, err)

		require.NoError(t, commands.NewFailAssignmentCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd))

		failed := f.assignment(t, a.ID())
		assert.Equal(t, delivery.AssignmentFailed, failed.Status())
		assert.Equal(t, "vehicle breakdown", failed.Reason())
		agent := f.agent(t, a.AgentID())
		assert.True(t, agent.IsFree())
		assert.Equal(t, 1, agent.TotalDeliveries())
		assert.Zero(t, agent.SuccessfulDeliveries())
		assert.Nil(t, f.order(t, o.ID()).ActiveAssignmentID())
	})

	t.Run("should refuse a closed assignment", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)
		cmd, err := commands.NewFailAssignmentCommand(a.ID(), "lost")
		require.NoError(t, err)
		handler := commands.NewFailAssignmentCommandHandler(f.uow, f.bus, f.clock)
		require.NoError(t, handler.Handle(t.Context(), cmd))

		err = handler.Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})
}

func TestRateAssignmentCommandHandler(t *testing.T) {
	deliver := func(t *testing.T, f *fixture) *delivery.Assignment {
		t.Helper()
		o, a := f.acceptedAssignment(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))
		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentPickedUp, nil))
		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentInTransit, nil))
		require.NoError(t, f.completeLeg(t, a.ID(), delivery.AssignmentDelivered,
			&delivery.ProofOfDelivery{Method: delivery.ProofContactless}))
		return a
	}

	t.Run("should rate a delivered assignment once", func(t *testing.T) {
		f := newFixture(t)
		a := deliver(t, f)
		handler := commands.NewRateAssignmentCommandHandler(f.uow)
		cmd, err := commands.NewRateAssignmentCommand(a.ID(), 4, "still cold on arrival")
		require.NoError(t, err)

		require.NoError(t, handler.Handle(t.Context(), cmd))
		err = handler.Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrAlreadyExists)
		rated := f.assignment(t, a.ID())
		require.NotNil(t, rated.Rating())
		assert.Equal(t, 4, *rated.Rating())
		agent := f.agent(t, a.AgentID())
		assert.InDelta(t, 4.0, agent.AverageRating(), 0.001)
		assert.Equal(t, 1, agent.RatingCount())
	})

	t.Run("should refuse rating an undelivered assignment", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)
		cmd, err := commands.NewRateAssignmentCommand(a.ID(), 5, "")
		require.NoError(t, err)

		err = commands.NewRateAssignmentCommandHandler(f.uow).Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})
}

func TestRecordLocationCommandHandler(t *testing.T) {
	t.Run("should store the point and move the agent", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)
		point, err := kernel.NewGeoPoint(12.9352, 77.6245)
		require.NoError(t, err)
		speed := 18.5
		cmd, err := commands.NewRecordLocationCommand(a.ID(), point, nil, &speed, nil)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		require.NoError(t, commands.NewRecordLocationCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd))

		points, err := f.uow.Create().AssignmentRepository().Tracking(t.Context(), a.ID())
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, point, points[0].Location)
		require.NotNil(t, points[0].Speed)
		assert.InDelta(t, 18.5, *points[0].Speed, 0.001)

		agent := f.agent(t, a.AgentID())
		assert.Equal(t, point, agent.Location())
		require.NotNil(t, agent.LastLocationUpdate())
		assert.Equal(t, f.clock.Now(), *agent.LastLocationUpdate())
		assert.Contains(t, f.events.Names(), delivery.LocationUpdatedEventName)
	})

	t.Run("should refuse points for a closed assignment", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)
		fail, err := commands.NewFailAssignmentCommand(a.ID(), "customer unreachable")
		require.NoError(t, err)
		require.NoError(t, commands.NewFailAssignmentCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), fail))
		cmd, err := commands.NewRecordLocationCommand(a.ID(), f.storeLocation, nil, nil, nil)
		require.NoError(t, err)

		err = commands.NewRecordLocationCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})
}

func TestCancelAssignmentCommandHandler(t *testing.T) {
	t.Run("should cancel the open assignment of an order", func(t *testing.T) {
		f := newFixture(t)
		o, a := f.acceptedAssignment(t)
		cmd, err := commands.NewCancelAssignmentCommand(o.ID(), delivery.ReasonOrderCancelled)
		require.NoError(t, err)

		require.NoError(t, commands.NewCancelAssignmentCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd))

		cancelled := f.assignment(t, a.ID())
		assert.Equal(t, delivery.AssignmentCancelled, cancelled.Status())
		assert.Equal(t, delivery.ReasonOrderCancelled, cancelled.Reason())
		assert.True(t, f.agent(t, a.AgentID()).IsFree())
	})

	t.Run("should drop a pending dispatch retry", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		_, err := f.assign(t, o.ID())
		require.ErrorIs(t, err, errs.ErrNoAgentAvailable)
		cmd, err := commands.NewCancelAssignmentCommand(o.ID(), delivery.ReasonOrderCancelled)
		require.NoError(t, err)

		require.NoError(t, commands.NewCancelAssignmentCommandHandler(f.uow, f.bus, f.clock).Handle(t.Context(), cmd))

		_, err = f.uow.Create().DispatchRequestRepository().Get(t.Context(), o.ID())
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}

func TestRegisterAgentCommandHandler(t *testing.T) {
	t.Run("should register an inactive agent for a known store", func(t *testing.T) {
		f := newFixture(t)
		cmd, err := commands.NewRegisterAgentCommand(f.storeID, "BLR-07", "Ravi")
		require.NoError(t, err)

		agent, err := commands.NewRegisterAgentCommandHandler(f.uow, f.catalog).Handle(t.Context(), cmd)

		require.NoError(t, err)
		stored := f.agent(t, agent.ID())
		assert.Equal(t, "BLR-07", stored.Code())
		assert.NotEqual(t, delivery.AgentActive, stored.Status())
	})

	t.Run("should refuse an unknown store", func(t *testing.T) {
		f := newFixture(t)
		cmd, err := commands.NewRegisterAgentCommand(kernel.NewUUID(), "BLR-07", "Ravi")
		require.NoError(t, err)

		_, err = commands.NewRegisterAgentCommandHandler(f.uow, f.catalog).Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}

func TestChangeAgentStatusCommandHandler(t *testing.T) {
	t.Run("should not let a busy agent go off duty", func(t *testing.T) {
		f := newFixture(t)
		_, a := f.acceptedAssignment(t)
		cmd, err := commands.NewChangeAgentStatusCommand(a.AgentID(), delivery.AgentOffDuty)
		require.NoError(t, err)

		err = commands.NewChangeAgentStatusCommandHandler(f.uow).Handle(t.Context(), cmd)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Equal(t, delivery.AgentActive, f.agent(t, a.AgentID()).Status())
	})
}
