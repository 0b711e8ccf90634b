// Package jobs provides the scheduled sweeps of the fulfillment engine.
//
// Jobs are cron-based (github.com/robfig/cron/v3, seconds field enabled):
//
//  1. ReservationExpiryJob - every 30s, releases stock of expired reservations and
//     cancels the orders that were never paid
//  2. AssignmentTimeoutJob - every 15s, times out offers nobody answered
//  3. DispatchRetryJob - every 15s, retries confirmed orders that found no agent
//  4. WalletReconcileJob - hourly, replays each wallet log against its balance and
//     raises the invariant violation metric on drift
//
// # Usage
//
//	jobManager := jobs.NewJobManager(expiryJob, timeoutJob, retryJob, reconcileJob)
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// Each Run is safe to call directly; tests drive the sweeps that way instead of
// waiting for the schedule.
package jobs
