package walletrepo_test

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/postgres/walletrepo"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type WalletRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *walletrepo.GormWalletRepository
}

func TestWalletRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WalletRepositoryIntegrationTestSuite))
}

func (suite *WalletRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{TranslateError: true})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&walletrepo.WalletDTO{}, &walletrepo.TransactionDTO{}))
}

func (suite *WalletRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE wallets, wallet_transactions").Error)

	suite.repository = walletrepo.NewGormWalletRepository(suite.db)
}

func (suite *WalletRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *WalletRepositoryIntegrationTestSuite) TestWallets() {
	ctx := context.Background()

	suite.Run("should keep one wallet per customer", func() {
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))

		twin, err := wallet.NewWallet(kernel.NewUUID(), w.CustomerID())
		suite.Require().NoError(err)

		suite.Require().ErrorIs(suite.repository.Add(ctx, twin), errs.ErrAlreadyExists)
	})

	suite.Run("should report a customer without a wallet as not found", func() {
		_, err := suite.repository.GetByCustomer(ctx, kernel.NewUUID())

		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	})

	suite.Run("should persist balance moves and reject a stale copy", func() {
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))
		stale, err := suite.repository.GetByCustomer(ctx, w.CustomerID())
		suite.Require().NoError(err)

		suite.apply(w, wallet.TransactionCredit, "250.00", "topup:1")
		suite.Require().NoError(suite.repository.Update(ctx, w))

		stored, err := suite.repository.GetByCustomer(ctx, w.CustomerID())
		suite.Require().NoError(err)
		suite.True(stored.Balance().Equal(decimal.RequireFromString("250.00")))
		suite.Equal(1, stored.Sequence())
		suite.True(stored.Active())

		suite.apply(stale, wallet.TransactionCredit, "10.00", "topup:2")
		suite.Require().ErrorIs(suite.repository.Update(ctx, stale), errs.ErrConflict)
	})
}

func (suite *WalletRepositoryIntegrationTestSuite) TestListCustomers() {
	ctx := context.Background()

	suite.Run("should page through owners in id order", func() {
		var customers []kernel.UUID
		for i := 0; i < 5; i++ {
			w := suite.newWallet()
			suite.Require().NoError(suite.repository.Add(ctx, w))
			customers = append(customers, w.CustomerID())
		}

		var seen []kernel.UUID
		after := kernel.UUID{}
		for {
			page, err := suite.repository.ListCustomers(ctx, after, 2)
			suite.Require().NoError(err)
			seen = append(seen, page...)
			if len(page) < 2 {
				break
			}
			after = page[len(page)-1]
		}

		suite.ElementsMatch(customers, seen)
		for i := 1; i < len(seen); i++ {
			suite.True(seen[i-1].Less(seen[i]))
		}
	})

	suite.Run("should return nothing past the last owner", func() {
		suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE wallets").Error)
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))

		page, err := suite.repository.ListCustomers(ctx, w.CustomerID(), 10)

		suite.Require().NoError(err)
		suite.Empty(page)
	})
}

func (suite *WalletRepositoryIntegrationTestSuite) TestTransactions() {
	ctx := context.Background()

	suite.Run("should keep the log in sequence order and reconcile against it", func() {
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))
		orderID := kernel.NewUUID()
		credit := suite.apply(w, wallet.TransactionRefund, "400.00", "refund:1")
		payment, err := w.Apply(kernel.NewUUID(), wallet.Entry{
			Type:           wallet.TransactionPayment,
			Amount:         decimal.RequireFromString("150.00"),
			Description:    "order payment",
			OrderID:        &orderID,
			IdempotencyKey: "payment:1",
		}, time.Now())
		suite.Require().NoError(err)
		suite.Require().NoError(suite.repository.AddTransaction(ctx, payment))
		suite.Require().NoError(suite.repository.AddTransaction(ctx, credit))
		suite.Require().NoError(suite.repository.Update(ctx, w))

		txs, err := suite.repository.Transactions(ctx, w.ID())
		suite.Require().NoError(err)
		suite.Require().Len(txs, 2)
		suite.Equal(credit.ID(), txs[0].ID())
		suite.Equal(payment.ID(), txs[1].ID())
		suite.True(txs[1].BalanceBefore().Equal(decimal.RequireFromString("400.00")))
		suite.True(txs[1].BalanceAfter().Equal(decimal.RequireFromString("250.00")))
		suite.Require().NotNil(txs[1].OrderID())
		suite.Equal(orderID, *txs[1].OrderID())

		stored, err := suite.repository.GetByCustomer(ctx, w.CustomerID())
		suite.Require().NoError(err)
		suite.Require().NoError(stored.Reconcile(txs))
	})

	suite.Run("should refuse a replayed idempotency key", func() {
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))
		first := suite.apply(w, wallet.TransactionCredit, "50.00", "topup:dup")
		suite.Require().NoError(suite.repository.AddTransaction(ctx, first))

		replay := suite.apply(w, wallet.TransactionCredit, "50.00", "topup:dup")

		suite.Require().ErrorIs(suite.repository.AddTransaction(ctx, replay), errs.ErrAlreadyExists)
		found, err := suite.repository.FindTransaction(ctx, w.ID(), "topup:dup")
		suite.Require().NoError(err)
		suite.Equal(first.ID(), found.ID())
	})

	suite.Run("should refuse two transactions at the same sequence", func() {
		w := suite.newWallet()
		suite.Require().NoError(suite.repository.Add(ctx, w))
		stale, err := suite.repository.GetByCustomer(ctx, w.CustomerID())
		suite.Require().NoError(err)

		suite.Require().NoError(suite.repository.AddTransaction(ctx, suite.apply(w, wallet.TransactionCredit, "20.00", "topup:a")))
		racing := suite.apply(stale, wallet.TransactionCredit, "30.00", "topup:b")

		suite.Require().ErrorIs(suite.repository.AddTransaction(ctx, racing), errs.ErrAlreadyExists)
	})

	suite.Run("should report an unknown idempotency key as not found", func() {
		_, err := suite.repository.FindTransaction(ctx, kernel.NewUUID(), "missing")

		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	})
}

func (suite *WalletRepositoryIntegrationTestSuite) newWallet() *wallet.Wallet {
	w, err := wallet.NewWallet(kernel.NewUUID(), kernel.NewUUID())
	suite.Require().NoError(err)
	return w
}

func (suite *WalletRepositoryIntegrationTestSuite) apply(
	w *wallet.Wallet,
	txType wallet.TransactionType,
	amount, key string,
) *wallet.Transaction {
	tx, err := w.Apply(kernel.NewUUID(), wallet.Entry{
		Type:           txType,
		Amount:         decimal.RequireFromString(amount),
		Description:    txType.String(),
		IdempotencyKey: key,
	}, time.Now())
	suite.Require().NoError(err)
	return tx
}
