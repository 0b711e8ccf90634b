package services

import (
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

// Candidate is an agent eligible for an order together with its estimated trip to
// the store.
type Candidate struct {
	Agent    *delivery.Agent
	Estimate delivery.Estimate
}

// AgentDispatcher is a domain service responsible for choosing the delivery agent
// for an order using the nearest-available heuristic.
//
// Business rules:
//   - Only valid, free agents are considered
//   - Selection prioritizes the minimum ETA to the store
//   - Ties are broken by the shorter distance, then by the lower agent id, so the
//     choice is deterministic
//
// Example usage:
//
//	dispatcher := services.NewAgentDispatcher()
//	best, err := dispatcher.Choose(orderID, candidates)
//	if errors.Is(err, errs.ErrNoAgentAvailable) {
//	    // schedule a retry
//	}
type AgentDispatcher struct{}

// NewAgentDispatcher creates a new AgentDispatcher instance.
func NewAgentDispatcher() AgentDispatcher {
	return AgentDispatcher{}
}

// Choose returns the best candidate for orderID.
//
// Returns:
//   - Candidate: the selected agent and its estimate
//   - error: NoAgentAvailableError when no candidate qualifies, or a validation error
func (d AgentDispatcher) Choose(orderID kernel.UUID, candidates []Candidate) (Candidate, error) {
	var (
		best  Candidate
		found bool
	)

	for _, c := range candidates {
		if err := c.Agent.Validate(); err != nil {
			return Candidate{}, err
		}
		if !c.Agent.IsFree() || c.Estimate.Validate() != nil {
			continue
		}
		if !found || d.better(c, best) {
			best = c
			found = true
		}
	}

	if !found {
		return Candidate{}, errs.NewNoAgentAvailableError(orderID.String())
	}
	return best, nil
}

func (d AgentDispatcher) better(c, than Candidate) bool {
	if c.Estimate.EtaMinutes != than.Estimate.EtaMinutes {
		return c.Estimate.EtaMinutes < than.Estimate.EtaMinutes
	}
	if c.Estimate.DistanceKm != than.Estimate.DistanceKm {
		return c.Estimate.DistanceKm < than.Estimate.DistanceKm
	}
	return c.Agent.ID().Less(than.Agent.ID())
}
