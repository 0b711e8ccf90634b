package order

import (
	"time"

	"fulfillment/internal/core/domain/model/kernel"
)

// HistoryEntry is one immutable row of an order's audit trail. Entries are only ever
// appended; Sequence starts at 1 and has no gaps.
type HistoryEntry struct {
	Sequence int
	From     Status
	To       Status
	Actor    kernel.Actor
	Note     string
	Override bool
	At       time.Time
}
