// Package utils provides the small decimal and ID helpers the runner
// exercises on the hot path: tick-size rounding for bracket prices and
// trade ID generation. Trimmed from the teacher's pkg/utils.go, which
// carried a much larger backtesting/crypto toolkit (Sharpe, drawdown,
// EMA/SMA, retry/batch generics, symbol parsing) this domain has no
// caller for.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with optional prefix.
func GenerateID(prefix string) string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateTradeID generates a unique trade ID.
func GenerateTradeID() string {
	return GenerateID("trd")
}

// RoundToTickSize rounds a price to the nearest tick size.
func RoundToTickSize(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	return price.Div(tickSize).Round(0).Mul(tickSize)
}
