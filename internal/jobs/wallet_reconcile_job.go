package jobs

import (
	"context"
	"log/slog"

	"fulfillment/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

const (
	walletReconcileSchedule = "0 0 * * * *"
	walletReconcileBatch    = 200
)

// WalletReconcileJob checks every wallet balance against its transaction log once
// an hour.
type WalletReconcileJob struct {
	handler commands.ReconcileWalletsCommandHandler
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewWalletReconcileJob(handler commands.ReconcileWalletsCommandHandler, logger *slog.Logger) *WalletReconcileJob {
	return &WalletReconcileJob{
		handler: handler,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "wallet_reconcile_job"),
	}
}

func (j *WalletReconcileJob) Start() error {
	if _, err := j.cron.AddFunc(walletReconcileSchedule, func() { j.Run(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Wallet reconcile job started", "schedule", walletReconcileSchedule)
	return nil
}

func (j *WalletReconcileJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Wallet reconcile job stopped")
}

// Run performs one sweep and returns the customers whose wallet did not reconcile.
func (j *WalletReconcileJob) Run(ctx context.Context) commands.ReconcileResult {
	result, err := j.handler.Handle(ctx, walletReconcileBatch)
	if err != nil {
		j.logger.ErrorContext(ctx, "Wallet reconcile failed", "checked", result.Checked, "error", err)
		return result
	}
	for _, customerID := range result.Mismatched {
		j.logger.WarnContext(ctx, "Wallet does not reconcile", "customer_id", customerID.String())
	}
	return result
}
