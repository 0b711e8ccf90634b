package jobs

import (
	"context"
	"errors"
	"log/slog"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/robfig/cron/v3"
)

const (
	reservationExpirySchedule = "*/30 * * * * *"
	reservationExpiryBatch    = 100
	reasonReservationExpired  = "reservation_expired"
)

// ReservationExpiryJob releases stock held by reservations past their TTL and
// cancels the orders that were still waiting for payment.
type ReservationExpiryJob struct {
	expire commands.ExpireReservationsCommandHandler
	cancel commands.CancelOrderCommandHandler
	actor  kernel.Actor
	cron   *cron.Cron
	logger *slog.Logger
}

func NewReservationExpiryJob(
	expire commands.ExpireReservationsCommandHandler,
	cancel commands.CancelOrderCommandHandler,
	logger *slog.Logger,
) *ReservationExpiryJob {
	return &ReservationExpiryJob{
		expire: expire,
		cancel: cancel,
		actor:  kernel.SystemActor("reservation_expiry_job"),
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.With("component", "reservation_expiry_job"),
	}
}

func (j *ReservationExpiryJob) Start() error {
	if _, err := j.cron.AddFunc(reservationExpirySchedule, func() { j.Run(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Reservation expiry job started", "schedule", reservationExpirySchedule)
	return nil
}

func (j *ReservationExpiryJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Reservation expiry job stopped")
}

// Run performs one sweep.
func (j *ReservationExpiryJob) Run(ctx context.Context) {
	orderIDs, err := j.expire.Handle(ctx, reservationExpiryBatch)
	if err != nil {
		j.logger.ErrorContext(ctx, "Reservation expiry failed", "error", err)
		return
	}

	for _, id := range orderIDs {
		cmd, err := commands.NewCancelUnpaidOrderCommand(id, j.actor, reasonReservationExpired)
		if err != nil {
			j.logger.ErrorContext(ctx, "Invalid cancel command", "order_id", id.String(), "error", err)
			continue
		}
		err = j.cancel.Handle(ctx, cmd)
		switch {
		case err == nil:
		case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrObjectNotFound):
			// Paid or closed meanwhile.
		default:
			j.logger.ErrorContext(ctx, "Failed to cancel expired order", "order_id", id.String(), "error", err)
		}
	}
}
