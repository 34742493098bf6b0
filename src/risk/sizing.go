package risk

import (
	"github.com/shopspring/decimal"

	"copytrader/src/model"
)

// quantityPrecision bounds the decimal places submitted to brokers.
const quantityPrecision = 8

// SizingDecision is the outcome of the pre-submission eligibility check.
// When Eligible is false the order never reaches a broker and the execution
// log is written as skipped with SkipReason.
type SizingDecision struct {
	Quantity   decimal.Decimal
	Eligible   bool
	SkipReason string
}

// CalculateOrderQuantity derives the order quantity from the subscription's
// auto-trade settings and the signal price. Quantity is max position size
// (quote notional) divided by price, truncated to the broker-safe precision.
func CalculateOrderQuantity(
	settings model.AutoTradeSettings,
	symbol string,
	price decimal.Decimal,
) SizingDecision {

	if !settings.SymbolAllowed(symbol) {
		return SizingDecision{SkipReason: "symbol not in allow-list"}
	}

	if settings.MaxPositionSize.LessThanOrEqual(decimal.Zero) {
		return SizingDecision{SkipReason: "max position size is zero"}
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return SizingDecision{SkipReason: "signal price is not positive"}
	}

	quantity := settings.MaxPositionSize.DivRound(price, quantityPrecision+1).
		Truncate(quantityPrecision)

	if quantity.LessThanOrEqual(decimal.Zero) {
		return SizingDecision{SkipReason: "computed quantity is zero at signal price"}
	}

	return SizingDecision{Quantity: quantity, Eligible: true}
}
