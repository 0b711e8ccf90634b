// Package kernel holds the value objects shared by every aggregate of the fulfillment
// domain: identifiers, geographic points, money rounding, actors and the domain event
// recorder used to hand events to the unit of work after commit.
package kernel
