package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

type agentRepository struct {
	uow *UnitOfWork
}

func (r *agentRepository) Add(_ context.Context, agent *delivery.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		for _, stored := range d.agents {
			if stored.ID().IsEqual(agent.ID()) ||
				(stored.StoreID().IsEqual(agent.StoreID()) && stored.Code() == agent.Code()) {
				return fmt.Errorf("%w: agent %s", errs.ErrAlreadyExists, agent.Code())
			}
		}
		stored, err := copyAgent(agent)
		if err != nil {
			return err
		}
		d.agents[agent.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(agent)
	return nil
}

func (r *agentRepository) Update(_ context.Context, agent *delivery.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		existing, ok := d.agents[agent.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("agent", agent.ID())
		}
		expected, _ := agent.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("agent", agent.ID().String())
		}
		stored, err := copyAgent(agent)
		if err != nil {
			return err
		}
		d.agents[agent.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(agent)
	return nil
}

func (r *agentRepository) Get(_ context.Context, id kernel.UUID) (*delivery.Agent, error) {
	var out *delivery.Agent
	err := r.uow.read(func(d *data) error {
		stored, ok := d.agents[id]
		if !ok {
			return errs.NewObjectNotFoundError("agent", id)
		}
		var err error
		out, err = copyAgent(stored)
		return err
	})
	return out, err
}

func (r *agentRepository) ListByStore(_ context.Context, storeID kernel.UUID) ([]*delivery.Agent, error) {
	var out []*delivery.Agent
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.agents {
			if !stored.StoreID().IsEqual(storeID) {
				continue
			}
			a, err := copyAgent(stored)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Less(out[j].ID()) })
	return out, err
}

type assignmentRepository struct {
	uow *UnitOfWork
}

func (r *assignmentRepository) Add(_ context.Context, assignment *delivery.Assignment) error {
	if err := assignment.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		if _, ok := d.assignments[assignment.ID()]; ok {
			return fmt.Errorf("%w: assignment %s", errs.ErrAlreadyExists, assignment.ID())
		}
		for _, stored := range d.assignments {
			if stored.OrderID().IsEqual(assignment.OrderID()) && !stored.IsTerminal() {
				return fmt.Errorf("%w: order %s already has open assignment %s",
					errs.ErrAlreadyExists, assignment.OrderID(), stored.ID())
			}
		}
		stored, err := copyAssignment(assignment)
		if err != nil {
			return err
		}
		d.assignments[assignment.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(assignment)
	return nil
}

func (r *assignmentRepository) Update(_ context.Context, assignment *delivery.Assignment) error {
	if err := assignment.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		existing, ok := d.assignments[assignment.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("assignment", assignment.ID())
		}
		expected, _ := assignment.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("assignment", assignment.ID().String())
		}
		stored, err := copyAssignment(assignment)
		if err != nil {
			return err
		}
		d.assignments[assignment.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(assignment)
	return nil
}

func (r *assignmentRepository) Get(_ context.Context, id kernel.UUID) (*delivery.Assignment, error) {
	var out *delivery.Assignment
	err := r.uow.read(func(d *data) error {
		stored, ok := d.assignments[id]
		if !ok {
			return errs.NewObjectNotFoundError("assignment", id)
		}
		var err error
		out, err = copyAssignment(stored)
		return err
	})
	return out, err
}

func (r *assignmentRepository) ListByOrder(_ context.Context, orderID kernel.UUID) ([]*delivery.Assignment, error) {
	return r.list(func(a *delivery.Assignment) bool { return a.OrderID().IsEqual(orderID) }, 0)
}

func (r *assignmentRepository) ListOverdue(_ context.Context, now time.Time, limit int) ([]*delivery.Assignment, error) {
	return r.list(func(a *delivery.Assignment) bool { return a.IsResponseOverdue(now) }, limit)
}

func (r *assignmentRepository) list(match func(a *delivery.Assignment) bool, limit int) ([]*delivery.Assignment, error) {
	var out []*delivery.Assignment
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.assignments {
			if !match(stored) {
				continue
			}
			a, err := copyAssignment(stored)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt().Equal(out[j].AssignedAt()) {
			return out[i].AssignedAt().Before(out[j].AssignedAt())
		}
		return out[i].ID().Less(out[j].ID())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *assignmentRepository) AppendTracking(_ context.Context, point delivery.TrackingPoint) error {
	return r.uow.write(func(d *data) error {
		if _, ok := d.assignments[point.AssignmentID]; !ok {
			return errs.NewObjectNotFoundError("assignment", point.AssignmentID)
		}
		d.tracking[point.AssignmentID] = append(slices.Clone(d.tracking[point.AssignmentID]), point)
		return nil
	})
}

func (r *assignmentRepository) Tracking(_ context.Context, assignmentID kernel.UUID) ([]delivery.TrackingPoint, error) {
	var out []delivery.TrackingPoint
	err := r.uow.read(func(d *data) error {
		out = slices.Clone(d.tracking[assignmentID])
		return nil
	})
	return out, err
}

type dispatchRequestRepository struct {
	uow *UnitOfWork
}

func (r *dispatchRequestRepository) Save(_ context.Context, request *delivery.DispatchRequest) error {
	return r.uow.write(func(d *data) error {
		existing, ok := d.dispatch[request.OrderID()]
		expected, _ := request.AdvanceVersion()
		switch {
		case !ok && expected != 0:
			return errs.NewConflictError("dispatch request", request.OrderID().String())
		case ok && existing.Version() != expected:
			return errs.NewConflictError("dispatch request", request.OrderID().String())
		}
		stored, err := copyDispatchRequest(request)
		if err != nil {
			return err
		}
		d.dispatch[request.OrderID()] = stored
		return nil
	})
}

func (r *dispatchRequestRepository) Get(_ context.Context, orderID kernel.UUID) (*delivery.DispatchRequest, error) {
	var out *delivery.DispatchRequest
	err := r.uow.read(func(d *data) error {
		stored, ok := d.dispatch[orderID]
		if !ok {
			return errs.NewObjectNotFoundError("dispatch request", orderID)
		}
		var err error
		out, err = copyDispatchRequest(stored)
		return err
	})
	return out, err
}

func (r *dispatchRequestRepository) Delete(_ context.Context, orderID kernel.UUID) error {
	return r.uow.write(func(d *data) error {
		delete(d.dispatch, orderID)
		return nil
	})
}

func (r *dispatchRequestRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*delivery.DispatchRequest, error) {
	var out []*delivery.DispatchRequest
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.dispatch {
			if !stored.IsDue(now) {
				continue
			}
			req, err := copyDispatchRequest(stored)
			if err != nil {
				return err
			}
			out = append(out, req)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextAttemptAt().Equal(out[j].NextAttemptAt()) {
			return out[i].NextAttemptAt().Before(out[j].NextAttemptAt())
		}
		return out[i].OrderID().Less(out[j].OrderID())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
