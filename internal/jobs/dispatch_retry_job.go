package jobs

import (
	"context"
	"log/slog"

	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/kernel"

	"github.com/robfig/cron/v3"
)

const (
	dispatchRetrySchedule = "*/15 * * * * *"
	dispatchRetryBatch    = 50
)

// Dispatcher retries the assignment of one order.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID kernel.UUID) error
}

// DispatchRetryJob retries confirmed orders that found no agent, once their backoff
// delay has passed.
type DispatchRetryJob struct {
	due        queries.GetDueDispatchesQueryHandler
	dispatcher Dispatcher
	cron       *cron.Cron
	logger     *slog.Logger
}

func NewDispatchRetryJob(due queries.GetDueDispatchesQueryHandler, dispatcher Dispatcher, logger *slog.Logger) *DispatchRetryJob {
	return &DispatchRetryJob{
		due:        due,
		dispatcher: dispatcher,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger.With("component", "dispatch_retry_job"),
	}
}

func (j *DispatchRetryJob) Start() error {
	if _, err := j.cron.AddFunc(dispatchRetrySchedule, func() { j.Run(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Dispatch retry job started", "schedule", dispatchRetrySchedule)
	return nil
}

func (j *DispatchRetryJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Dispatch retry job stopped")
}

func (j *DispatchRetryJob) Run(ctx context.Context) {
	requests, err := j.due.Handle(ctx, dispatchRetryBatch)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to load due dispatches", "error", err)
		return
	}

	for _, r := range requests {
		if err = j.dispatcher.Dispatch(ctx, r.OrderID()); err != nil {
			j.logger.ErrorContext(ctx, "Dispatch retry failed",
				"order_id", r.OrderID().String(),
				"attempts", r.Attempts(),
				"error", err)
		}
	}
}
