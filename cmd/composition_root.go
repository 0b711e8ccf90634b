package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	httpin "fulfillment/internal/adapters/in/http"
	"fulfillment/internal/adapters/out/catalog"
	"fulfillment/internal/adapters/out/distance"
	"fulfillment/internal/adapters/out/events"
	"fulfillment/internal/adapters/out/gateway"
	"fulfillment/internal/adapters/out/memory"
	"fulfillment/internal/adapters/out/postgres"
	"fulfillment/internal/core/application/cart"
	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/application/orchestration"
	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/jobs"
	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultAgentSpeedKmh   = 20
	distanceServiceTimeout = 3 * time.Second
	distanceCacheTTL       = 10 * time.Minute
)

// CompositionRoot owns the process-wide adapters and builds handlers on demand.
type CompositionRoot struct {
	cfg    Config
	logger *slog.Logger
	clock  ports.Clock

	gormDB     *gorm.DB
	uowFactory ports.UnitOfWorkFactory

	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	bus       *events.Bus
	catalog   ports.Catalog
	carts     ports.CartSource
	estimator ports.DistanceEstimator
	gateway   ports.Gateway
	methods   payment.Methods

	inventory  *ledger.Inventory
	wallets    *ledger.Wallet
	aggregator *cart.Aggregator
	policy     commands.DispatchPolicy

	coordinator *orchestration.Coordinator
	closers     []func() error
}

func NewCompositionRoot(ctx context.Context, cfg Config, logger *slog.Logger) (*CompositionRoot, error) {
	c := &CompositionRoot{
		cfg:      cfg,
		logger:   logger,
		clock:    ports.SystemClock{},
		registry: prometheus.NewRegistry(),
		carts:    catalog.NewMemoryCartSource(),
	}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.metrics = metrics.New(c.registry)
	c.bus = events.NewBus(logger, c.metrics)

	if err := c.initStorage(); err != nil {
		return nil, err
	}
	if err := c.initEstimator(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initDomain(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initCoordinator(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *CompositionRoot) initStorage() error {
	if !c.cfg.UsesPostgres() {
		c.logger.Warn("DB_HOST is not set, running on the in-memory store")
		c.uowFactory = memory.NewUnitOfWorkFactory(memory.NewStore())
		c.catalog = catalog.NewStaticCatalog()
		return nil
	}

	db, err := gorm.Open(gormpostgres.Open(c.cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err = postgres.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err = catalog.Migrate(db); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	c.closers = append(c.closers, sqlDB.Close)

	c.gormDB = db
	c.uowFactory = postgres.NewGormUnitOfWorkFactory(db)
	c.catalog = catalog.NewPostgresCatalog(db)
	return nil
}

func (c *CompositionRoot) initEstimator(ctx context.Context) error {
	var estimator ports.DistanceEstimator
	if c.cfg.DistanceServiceURL != "" {
		e, err := distance.NewHTTPEstimator(c.cfg.DistanceServiceURL, distanceServiceTimeout)
		if err != nil {
			return err
		}
		estimator = e
	} else {
		e, err := distance.NewStraightLineEstimator(defaultAgentSpeedKmh)
		if err != nil {
			return err
		}
		estimator = e
	}

	if c.cfg.RedisURL != "" {
		client, err := distance.Connect(ctx, c.cfg.RedisURL)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Close)
		estimator = distance.NewCachedEstimator(estimator, client, distanceCacheTTL, c.logger)
	}
	c.estimator = estimator
	return nil
}

func (c *CompositionRoot) initDomain() error {
	var err error
	if c.methods, err = LoadPaymentMethods(c.cfg.PaymentMethodsFile); err != nil {
		return err
	}
	if c.inventory, err = ledger.NewInventory(c.cfg.ReservationTTL, c.logger, c.metrics); err != nil {
		return err
	}
	if c.wallets, err = ledger.NewWallet(c.logger, c.metrics); err != nil {
		return err
	}
	if c.aggregator, err = cart.NewAggregator(c.catalog, c.carts); err != nil {
		return err
	}

	c.gateway = gateway.NewRetryingGateway(gateway.NewSandboxGateway(), gateway.DefaultRetryPolicy(), c.logger)

	c.policy = commands.DefaultDispatchPolicy()
	c.policy.ResponseWindow = c.cfg.AgentResponseWindow
	c.policy.FreshnessWindow = c.cfg.AgentFreshnessWindow
	c.policy.RetryInitial = c.cfg.DispatchRetryInitial
	c.policy.MaxAttempts = c.cfg.DispatchMaxAttempts
	return nil
}

func (c *CompositionRoot) initCoordinator() error {
	policy, err := orchestration.ParseFailurePolicy(c.cfg.DispatchFailurePolicy)
	if err != nil {
		return err
	}

	var notifier ports.Notifier
	if len(c.cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaNotifier(c.cfg.KafkaBrokers, c.cfg.KafkaTopicPrefix)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, kafka.Close)
		notifier = kafka
	} else {
		notifier = events.NewLoggingNotifier(c.logger)
	}

	c.coordinator, err = orchestration.NewCoordinator(c.uowFactory, orchestration.Handlers{
		Confirm:          c.NewConfirmOrderCommandHandler(),
		Advance:          c.NewAdvanceOrderCommandHandler(),
		Cancel:           c.NewCancelOrderCommandHandler(),
		RefundOrder:      c.NewRefundOrderCommandHandler(),
		RefundPayment:    c.NewRefundPaymentCommandHandler(),
		CancelPayment:    commands.NewCancelPendingPaymentCommandHandler(c.uowFactory, c.bus, c.clock),
		CollectCash:      commands.NewCollectCashPaymentCommandHandler(c.uowFactory, c.bus, c.clock, c.metrics),
		Assign:           c.NewAssignAgentCommandHandler(),
		CancelAssignment: commands.NewCancelAssignmentCommandHandler(c.uowFactory, c.bus, c.clock),
	}, notifier, policy, c.logger)
	if err != nil {
		return err
	}
	c.coordinator.Register(c.bus)
	return nil
}

// Close releases connections in reverse order of creation.
func (c *CompositionRoot) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *CompositionRoot) Gatherer() prometheus.Gatherer {
	return c.registry
}

func (c *CompositionRoot) NewConfirmOrderCommandHandler() commands.ConfirmOrderCommandHandler {
	return commands.NewConfirmOrderCommandHandler(c.uowFactory, c.inventory, c.bus, c.clock, c.metrics)
}

func (c *CompositionRoot) NewAdvanceOrderCommandHandler() commands.AdvanceOrderCommandHandler {
	return commands.NewAdvanceOrderCommandHandler(c.uowFactory, c.bus, c.clock, c.logger, c.metrics)
}

func (c *CompositionRoot) NewCancelOrderCommandHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(c.uowFactory, c.inventory, c.bus, c.clock, c.logger, c.metrics)
}

func (c *CompositionRoot) NewRefundOrderCommandHandler() commands.RefundOrderCommandHandler {
	return commands.NewRefundOrderCommandHandler(c.uowFactory, c.inventory, c.bus, c.clock, c.metrics)
}

func (c *CompositionRoot) NewRefundPaymentCommandHandler() commands.RefundPaymentCommandHandler {
	return commands.NewRefundPaymentCommandHandler(c.uowFactory, c.gateway, c.wallets, c.bus, c.clock, c.logger, c.metrics)
}

func (c *CompositionRoot) NewAssignAgentCommandHandler() commands.AssignAgentCommandHandler {
	return commands.NewAssignAgentCommandHandler(
		c.uowFactory, c.catalog, c.estimator, services.NewAgentDispatcher(), c.policy,
		c.bus, c.clock, c.logger, c.metrics)
}

// NewHTTPServer builds the API server. The store work queue is only served with
// postgres, since it reads the orders table directly.
func (c *CompositionRoot) NewHTTPServer() *httpin.Server {
	handlers := httpin.Handlers{
		CreateOrder: commands.NewCreateOrderCommandHandler(
			c.uowFactory, c.aggregator, c.inventory, c.carts, c.bus, c.clock, c.logger, c.metrics),
		AdvanceOrder: c.NewAdvanceOrderCommandHandler(),
		CancelOrder:  c.NewCancelOrderCommandHandler(),
		InitiatePayment: commands.NewInitiatePaymentCommandHandler(
			c.uowFactory, c.gateway, c.wallets, c.methods, c.cfg.MaxPaymentAttempts,
			c.bus, c.clock, c.logger, c.metrics),
		CapturePayment:    commands.NewCapturePaymentCommandHandler(c.uowFactory, c.bus, c.clock, c.logger, c.metrics),
		RefundPayment:     c.NewRefundPaymentCommandHandler(),
		RegisterAgent:     commands.NewRegisterAgentCommandHandler(c.uowFactory, c.catalog),
		ChangeAgentStatus: commands.NewChangeAgentStatusCommandHandler(c.uowFactory),
		RespondAssignment: commands.NewRespondAssignmentCommandHandler(c.uowFactory, c.bus, c.clock),
		RecordLocation:    commands.NewRecordLocationCommandHandler(c.uowFactory, c.bus, c.clock),
		CompleteLeg:       commands.NewCompleteLegCommandHandler(c.uowFactory, c.bus, c.clock),
		FailAssignment:    commands.NewFailAssignmentCommandHandler(c.uowFactory, c.bus, c.clock),
		RateAssignment:    commands.NewRateAssignmentCommandHandler(c.uowFactory),
		Restock:           commands.NewRestockCommandHandler(c.uowFactory, c.inventory),
		CreditWallet:      commands.NewCreditWalletCommandHandler(c.uowFactory, c.wallets, c.clock),

		GetOrder:           queries.NewGetOrderQueryHandler(c.uowFactory),
		GetOrderHistory:    queries.NewGetOrderHistoryQueryHandler(c.uowFactory),
		GetAssignment:      queries.NewGetAssignmentQueryHandler(c.uowFactory),
		GetWalletStatement: queries.NewGetWalletStatementQueryHandler(c.uowFactory),

		Carts: c.carts,
	}
	if c.gormDB != nil {
		activeOrders := queries.NewGetActiveOrdersQueryHandler(c.gormDB)
		handlers.GetActiveOrders = &activeOrders
	}
	return httpin.NewServer(handlers, c.clock, c.logger)
}

func (c *CompositionRoot) NewJobManager() *jobs.JobManager {
	expiry := jobs.NewReservationExpiryJob(
		commands.NewExpireReservationsCommandHandler(c.uowFactory, c.inventory, c.clock, c.logger),
		c.NewCancelOrderCommandHandler(),
		c.logger,
	)
	timeout := jobs.NewAssignmentTimeoutJob(
		commands.NewTimeoutAssignmentsCommandHandler(c.uowFactory, c.bus, c.clock, c.logger),
		c.logger,
	)
	retry := jobs.NewDispatchRetryJob(
		queries.NewGetDueDispatchesQueryHandler(c.uowFactory, c.clock),
		c.coordinator,
		c.logger,
	)
	reconcile := jobs.NewWalletReconcileJob(
		commands.NewReconcileWalletsCommandHandler(c.uowFactory, c.wallets, c.logger),
		c.logger,
	)
	return jobs.NewJobManager(expiry, timeout, retry, reconcile)
}
