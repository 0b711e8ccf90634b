package metrics_test

import (
	"errors"
	"testing"
	"time"

	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("should count reservations by result", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		m.Reservation("reserved", 2)
		m.Reservation("out_of_stock", 1)
		m.Reservation("reserved", 0)

		families, err := reg.Gather()
		require.NoError(t, err)
		var found bool
		for _, f := range families {
			if f.GetName() == "fulfillment_reservations_total" {
				found = true
				assert.Len(t, f.GetMetric(), 2)
			}
		}
		assert.True(t, found)
	})

	t.Run("should label failed commands as errors", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		err := errors.New("boom")
		m.ObserveCommand("confirm_order", time.Now(), &err)

		count, gatherErr := testutil.GatherAndCount(reg, "fulfillment_command_duration_seconds")
		require.NoError(t, gatherErr)
		assert.Equal(t, 1, count)
	})

	t.Run("should ignore calls on a nil receiver", func(t *testing.T) {
		var m *metrics.Metrics
		assert.NotPanics(t, func() {
			m.OrderCreated()
			m.InvariantViolation("stock")
			m.ObserveCommand("noop", time.Now(), nil)
		})
	})
}
