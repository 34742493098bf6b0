package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"copytrader/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateOrderQuantity(t *testing.T) {
	settings := model.AutoTradeSettings{MaxPositionSize: d("1000")}

	decision := CalculateOrderQuantity(settings, "BTCUSD", d("65000"))
	require.True(t, decision.Eligible)
	require.True(t, decision.Quantity.Equal(d("0.01538461")),
		"expected 1000/65000 truncated to 8 places, got %s", decision.Quantity)
}

func TestCalculateOrderQuantityZeroSize(t *testing.T) {
	settings := model.AutoTradeSettings{MaxPositionSize: decimal.Zero}

	decision := CalculateOrderQuantity(settings, "BTCUSD", d("65000"))
	require.False(t, decision.Eligible)
	require.Equal(t, "max position size is zero", decision.SkipReason)
	require.True(t, decision.Quantity.IsZero())
}

func TestCalculateOrderQuantityRoundsToZero(t *testing.T) {
	// notional so small that the truncated quantity collapses to zero
	settings := model.AutoTradeSettings{MaxPositionSize: d("0.0000001")}

	decision := CalculateOrderQuantity(settings, "BTCUSD", d("65000"))
	require.False(t, decision.Eligible)
}

func TestCalculateOrderQuantitySymbolNotAllowed(t *testing.T) {
	settings := model.AutoTradeSettings{
		MaxPositionSize: d("1000"),
		AllowedSymbols:  []string{"ETHUSD"},
	}

	decision := CalculateOrderQuantity(settings, "BTCUSD", d("65000"))
	require.False(t, decision.Eligible)
	require.Equal(t, "symbol not in allow-list", decision.SkipReason)
}

func TestCalculateOrderQuantityEmptyAllowListMeansAll(t *testing.T) {
	settings := model.AutoTradeSettings{MaxPositionSize: d("100")}

	decision := CalculateOrderQuantity(settings, "DOGEUSD", d("0.25"))
	require.True(t, decision.Eligible)
	require.True(t, decision.Quantity.Equal(d("400")))
}

func TestCalculateOrderQuantityBadPrice(t *testing.T) {
	settings := model.AutoTradeSettings{MaxPositionSize: d("1000")}

	decision := CalculateOrderQuantity(settings, "BTCUSD", decimal.Zero)
	require.False(t, decision.Eligible)
}
