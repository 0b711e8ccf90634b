// Package commands contains the operations that change fulfillment state.
//
// Every command follows the same shape: a value object built through a constructor
// that validates its input and arms a ConstructorGuard, and a handler that opens a
// unit of work, loads aggregates, applies domain methods, saves them and commits.
// Domain events raised by the saved aggregates are published only after the commit
// succeeded, so subscribers never observe state that was rolled back.
//
// Handlers never call each other. Follow-up work (confirming a paid order, assigning
// an agent, refunding a cancelled order) is triggered by the orchestration package
// reacting to the published events.
package commands
