package jobs

import (
	"context"
	"log/slog"

	"fulfillment/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

const (
	assignmentTimeoutSchedule = "*/15 * * * * *"
	assignmentTimeoutBatch    = 100
)

// AssignmentTimeoutJob times out offers the agent did not answer within the response
// window. The coordinator reassigns the orders from the resulting events.
type AssignmentTimeoutJob struct {
	handler commands.TimeoutAssignmentsCommandHandler
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewAssignmentTimeoutJob(handler commands.TimeoutAssignmentsCommandHandler, logger *slog.Logger) *AssignmentTimeoutJob {
	return &AssignmentTimeoutJob{
		handler: handler,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "assignment_timeout_job"),
	}
}

func (j *AssignmentTimeoutJob) Start() error {
	if _, err := j.cron.AddFunc(assignmentTimeoutSchedule, func() { j.Run(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Assignment timeout job started", "schedule", assignmentTimeoutSchedule)
	return nil
}

func (j *AssignmentTimeoutJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Assignment timeout job stopped")
}

func (j *AssignmentTimeoutJob) Run(ctx context.Context) {
	n, err := j.handler.Handle(ctx, assignmentTimeoutBatch)
	if err != nil {
		j.logger.ErrorContext(ctx, "Assignment timeout failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "Assignments timed out", "count", n)
	}
}
