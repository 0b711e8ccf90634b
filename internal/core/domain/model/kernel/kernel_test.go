package kernel_test

import (
	"testing"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	const canonical = "550e8400-e29b-41d4-a716-446655440000"

	t.Run("should generate distinct valid identifiers", func(t *testing.T) {
		a, b := kernel.NewUUID(), kernel.NewUUID()

		require.NoError(t, a.Validate())
		assert.False(t, a.IsEqual(b))
	})

	t.Run("should parse canonical and braced forms", func(t *testing.T) {
		for _, in := range []string{canonical, "{" + canonical + "}", "urn:uuid:" + canonical} {
			id, err := kernel.UUIDFromString(in)

			require.NoError(t, err, in)
			assert.Equal(t, canonical, id.String())
		}
	})

	t.Run("should reject malformed and nil identifiers", func(t *testing.T) {
		_, err := kernel.UUIDFromString("not-a-uuid")
		assert.ErrorContains(t, err, "invalid UUID format")

		_, err = kernel.UUIDFromString(uuid.Nil.String())
		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("should round trip through bytes", func(t *testing.T) {
		id := kernel.NewUUID()
		raw := id.Bytes()

		restored, err := kernel.UUIDFromBytes(raw[:])

		require.NoError(t, err)
		assert.True(t, id.IsEqual(restored))
	})

	t.Run("should order identifiers bytewise", func(t *testing.T) {
		low, err := kernel.UUIDFromString("00000000-0000-0000-0000-000000000001")
		require.NoError(t, err)
		high, err := kernel.UUIDFromString("ffffffff-0000-0000-0000-000000000000")
		require.NoError(t, err)

		assert.True(t, low.Less(high))
		assert.False(t, high.Less(low))
		assert.False(t, low.Less(low))
	})

	t.Run("should treat the zero value as invalid", func(t *testing.T) {
		var id kernel.UUID

		assert.True(t, id.IsZero())
		assert.ErrorIs(t, id.Validate(), kernel.ErrUUIDIsNotConstructed)
	})
}

func TestGeoPoint(t *testing.T) {
	t.Run("should reject coordinates out of range", func(t *testing.T) {
		_, err := kernel.NewGeoPoint(91, 0)
		assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

		_, err = kernel.NewGeoPoint(0, -180.5)
		assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
	})

	t.Run("should compute the great-circle distance", func(t *testing.T) {
		bandra, err := kernel.NewGeoPoint(19.0596, 72.8295)
		require.NoError(t, err)
		colaba, err := kernel.NewGeoPoint(18.9067, 72.8147)
		require.NoError(t, err)

		km, err := bandra.DistanceKm(colaba)

		require.NoError(t, err)
		assert.InDelta(t, 17.1, km, 0.2)
	})

	t.Run("should refuse distance to an unset point", func(t *testing.T) {
		p, err := kernel.NewGeoPoint(10, 10)
		require.NoError(t, err)

		_, err = p.DistanceKm(kernel.GeoPoint{})

		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
		assert.False(t, kernel.GeoPoint{}.IsSet())
	})
}

func TestMoney(t *testing.T) {
	t.Run("should accept amounts with at most two decimals", func(t *testing.T) {
		assert.NoError(t, kernel.ValidatePositiveAmount("amount", decimal.RequireFromString("10.05")))
		assert.ErrorIs(t, kernel.ValidatePositiveAmount("amount", decimal.RequireFromString("10.005")), errs.ErrValueIsInvalid)
	})

	t.Run("should reject zero only where positive is required", func(t *testing.T) {
		assert.Error(t, kernel.ValidatePositiveAmount("amount", decimal.Zero))
		assert.NoError(t, kernel.ValidateNonNegativeAmount("amount", decimal.Zero))
		assert.Error(t, kernel.ValidateNonNegativeAmount("amount", decimal.NewFromInt(-1)))
	})

	t.Run("should round percentages half away from zero", func(t *testing.T) {
		got := kernel.Percentage(decimal.RequireFromString("999.50"), decimal.RequireFromString("2.5"))

		assert.Equal(t, "24.99", got.StringFixed(2))
	})
}

func TestActor(t *testing.T) {
	t.Run("should parse every role name", func(t *testing.T) {
		for _, role := range []kernel.ActorRole{
			kernel.RoleCustomer, kernel.RoleStoreOperator, kernel.RoleAgent, kernel.RoleAdmin, kernel.RoleSystem,
		} {
			parsed, err := kernel.ParseActorRole(role.String())

			require.NoError(t, err)
			assert.Equal(t, role, parsed)
		}
	})

	t.Run("should require an id", func(t *testing.T) {
		_, err := kernel.NewActor("  ", kernel.RoleAdmin)

		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("should build system actors", func(t *testing.T) {
		actor := kernel.SystemActor("reservation_expiry_job")

		require.NoError(t, actor.Validate())
		assert.True(t, actor.IsSystem())
		assert.Equal(t, "system:system:reservation_expiry_job", actor.String())
	})

	t.Run("should match any of the given roles", func(t *testing.T) {
		actor, err := kernel.NewActor("op-1", kernel.RoleStoreOperator)
		require.NoError(t, err)

		assert.True(t, actor.HasRole(kernel.RoleAdmin, kernel.RoleStoreOperator))
		assert.False(t, actor.HasRole(kernel.RoleCustomer))
	})
}

func TestVersion(t *testing.T) {
	t.Run("should return the expected stored version when advancing", func(t *testing.T) {
		v := kernel.RestoreVersion(3)

		expected, next := v.Advance()

		assert.Equal(t, 3, expected)
		assert.Equal(t, 4, next)
		assert.Equal(t, 4, v.Current())
	})
}
