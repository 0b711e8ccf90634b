// Package delivery provides the delivery side of fulfillment: agents, the
// assignment of one agent to one order, tracking points and proof of delivery.
//
// The package includes:
//   - Agent: the aggregate root for a store's delivery agent, with availability and
//     rolling performance metrics
//   - Assignment: the aggregate root binding an agent to an order, with its own
//     state machine
//   - TrackingPoint: an append-only location sample taken during an assignment
//   - ProofOfDelivery: the evidence attached when an assignment is delivered
//   - DispatchRequest: the retry schedule of an order that found no free agent
//
// Key business rules:
//   - An order has at most one non-terminal assignment; reassignment creates a new one
//   - An agent serves at most one assignment at a time
//   - Delivered requires a proof of delivery attached in the same transition
//   - Agent metrics are maintained incrementally, never recomputed from history
package delivery
