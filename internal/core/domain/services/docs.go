// Package services provides domain services that make decisions across several
// aggregates of the fulfillment engine and do not belong to any single one of them.
//
// The package includes:
//   - AgentDispatcher: picks the delivery agent that reaches the store soonest
//
// Domain services are stateless and perform no I/O: distance estimates and the
// candidate agents are loaded by the application layer and passed in.
package services
