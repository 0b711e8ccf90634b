package distance_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/distance"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zaptest"
)

// countingEstimator returns a fixed estimate and counts how often it was asked.
type countingEstimator struct {
	calls atomic.Int32
	err   error
}

func (e *countingEstimator) Estimate(context.Context, kernel.GeoPoint, kernel.GeoPoint) (delivery.Estimate, error) {
	e.calls.Add(1)
	if e.err != nil {
		return delivery.Estimate{}, e.err
	}
	return delivery.Estimate{DistanceKm: 2.4, EtaMinutes: 7.2}, nil
}

type CachedEstimatorIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	client    *redis.Client
	logger    *slog.Logger
}

func TestCachedEstimatorIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedEstimatorIntegrationTestSuite))
}

func (suite *CachedEstimatorIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	suite.Require().NoError(err)
	suite.container = container

	endpoint, err := container.Endpoint(ctx, "redis")
	suite.Require().NoError(err)
	suite.client, err = distance.Connect(ctx, endpoint)
	suite.Require().NoError(err)
	suite.logger = slog.New(zapslog.NewHandler(zaptest.NewLogger(suite.T()).Core()))
}

func (suite *CachedEstimatorIntegrationTestSuite) TearDownSuite() {
	if suite.client != nil {
		_ = suite.client.Close()
	}
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *CachedEstimatorIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.client.FlushDB(context.Background()).Err())
}

func (suite *CachedEstimatorIntegrationTestSuite) point(lat, lng float64) kernel.GeoPoint {
	p, err := kernel.NewGeoPoint(lat, lng)
	suite.Require().NoError(err)
	return p
}

func (suite *CachedEstimatorIntegrationTestSuite) TestEstimate_ReusesNearbyPoints() {
	ctx := context.Background()
	next := &countingEstimator{}
	cached := distance.NewCachedEstimator(next, suite.client, time.Minute, suite.logger)
	store := suite.point(12.9716, 77.5946)

	first, err := cached.Estimate(ctx, suite.point(12.97161, 77.59962), store)
	suite.Require().NoError(err)
	second, err := cached.Estimate(ctx, suite.point(12.97163, 77.59958), store)
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Equal(int32(1), next.calls.Load())
}

func (suite *CachedEstimatorIntegrationTestSuite) TestEstimate_SetsTTL() {
	ctx := context.Background()
	cached := distance.NewCachedEstimator(&countingEstimator{}, suite.client, time.Minute, suite.logger)

	_, err := cached.Estimate(ctx, suite.point(12.9, 77.5), suite.point(12.95, 77.55))
	suite.Require().NoError(err)

	keys, err := suite.client.Keys(ctx, "fulfillment:distance:*").Result()
	suite.Require().NoError(err)
	suite.Require().Len(keys, 1)
	ttl, err := suite.client.TTL(ctx, keys[0]).Result()
	suite.Require().NoError(err)
	suite.Greater(ttl, time.Duration(0))
	suite.LessOrEqual(ttl, time.Minute)
}

func (suite *CachedEstimatorIntegrationTestSuite) TestEstimate_DoesNotCacheFailures() {
	ctx := context.Background()
	next := &countingEstimator{err: errors.New("matrix unavailable")}
	cached := distance.NewCachedEstimator(next, suite.client, time.Minute, suite.logger)
	from, to := suite.point(12.9, 77.5), suite.point(12.95, 77.55)

	_, err := cached.Estimate(ctx, from, to)
	suite.Error(err)
	_, err = cached.Estimate(ctx, from, to)
	suite.Error(err)

	suite.Equal(int32(2), next.calls.Load())
}
