package guard_test

import (
	"testing"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/pkg/guard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorGuard(t *testing.T) {
	t.Run("should fall back to the default error for a zero guard", func(t *testing.T) {
		var g guard.ConstructorGuard

		assert.Equal(t, guard.ErrDefaultConstructorGuard, g.Validate(nil))
		assert.NoError(t, guard.NewConstructorGuard().Validate(nil))
	})
}

func TestConstructorGuard_Aggregates(t *testing.T) {
	storeID := kernel.NewUUID()

	agent, err := delivery.NewAgent(kernel.NewUUID(), storeID, "AG-1", "Ravi")
	require.NoError(t, err)
	w, err := wallet.NewWallet(kernel.NewUUID(), kernel.NewUUID())
	require.NoError(t, err)
	stock, err := inventory.NewStock(kernel.NewUUID(), storeID, 10)
	require.NoError(t, err)

	tests := []struct {
		name        string
		constructed interface{ Validate() error }
		literal     interface{ Validate() error }
		expected    error
	}{
		{name: "agent", constructed: agent, literal: &delivery.Agent{}, expected: delivery.ErrAgentIsNotConstructed},
		{name: "wallet", constructed: w, literal: &wallet.Wallet{}, expected: wallet.ErrWalletIsNotConstructed},
		{name: "stock", constructed: stock, literal: &inventory.Stock{}, expected: inventory.ErrStockIsNotConstructed},
	}

	for _, tt := range tests {
		t.Run("should accept a constructed "+tt.name, func(t *testing.T) {
			assert.NoError(t, tt.constructed.Validate())
		})

		t.Run("should reject a struct literal "+tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.literal.Validate(), tt.expected)
		})
	}
}

func TestConstructorGuard_Commands(t *testing.T) {
	t.Run("should accept a complete leg command built by its constructor", func(t *testing.T) {
		cmd, err := commands.NewCompleteLegCommand(kernel.NewUUID(), kernel.NewUUID(), delivery.AssignmentPickedUp, nil)
		require.NoError(t, err)

		assert.NoError(t, cmd.Validate())
	})

	t.Run("should reject zero value commands", func(t *testing.T) {
		assert.ErrorIs(t, commands.CompleteLegCommand{}.Validate(), commands.ErrCompleteLegCommandIsNotConstructed)
		assert.ErrorIs(t, commands.AssignAgentCommand{}.Validate(), commands.ErrAssignAgentCommandIsNotConstructed)
		assert.ErrorIs(t, commands.RefundPaymentCommand{}.Validate(), commands.ErrRefundPaymentCommandIsNotConstructed)
		assert.ErrorIs(t, commands.CancelPendingPaymentCommand{}.Validate(), commands.ErrCancelPendingPaymentCommandIsNotConstructed)
	})

	t.Run("should not hand out a command when the constructor fails", func(t *testing.T) {
		cmd, err := commands.NewCompleteLegCommand(kernel.NewUUID(), kernel.UUID{}, delivery.AssignmentPickedUp, nil)

		require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
		assert.ErrorIs(t, cmd.Validate(), commands.ErrCompleteLegCommandIsNotConstructed)
	})
}
