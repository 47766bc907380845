// Package pricing maps model identifiers to per-1000-token prices and
// derives estimated and actual job costs from them.
package pricing

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// DefaultModel is substituted for unrecognized model identifiers.
const DefaultModel = "gpt-4o"

var perThousand = decimal.NewFromInt(1000)

// estimateBuffer inflates the admission estimate to cover system
// instructions and the response.
var estimateBuffer = decimal.RequireFromString("1.5")

// pricePer1K holds USD per 1000 tokens.
var pricePer1K = map[string]decimal.Decimal{
	"gpt-4o":        decimal.RequireFromString("0.01"),
	"gpt-4o-mini":   decimal.RequireFromString("0.005"),
	"gpt-4-turbo":   decimal.RequireFromString("0.01"),
	"gpt-4":         decimal.RequireFromString("0.03"),
	"gpt-3.5-turbo": decimal.RequireFromString("0.0015"),
}

var maxTokens = map[string]int{
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4-turbo":   128000,
	"gpt-4":         8192,
	"gpt-3.5-turbo": 4096,
}

// Known reports whether the model identifier has a configured price.
func Known(model string) bool {
	_, ok := pricePer1K[model]
	return ok
}

// Normalize returns the model unchanged when recognized, otherwise the
// default model. The substitution is logged, not surfaced as an error.
func Normalize(model string) string {
	if Known(model) {
		return model
	}
	slog.Debug("unknown model, using default", "model", model, "default", DefaultModel)
	return DefaultModel
}

// PricePer1K returns the USD price per 1000 tokens, falling back to the
// default model's price for unknown identifiers.
func PricePer1K(model string) decimal.Decimal {
	if p, ok := pricePer1K[model]; ok {
		return p
	}
	return pricePer1K[DefaultModel]
}

// MaxTokens returns the model's context limit, with a conservative default.
func MaxTokens(model string) int {
	if n, ok := maxTokens[model]; ok {
		return n
	}
	return 4000
}

// CountTokens approximates the token count of text. One token per four
// bytes is the usual rule of thumb for this model family.
func CountTokens(text string) int {
	return len(text) / 4
}

// EstimateCost returns the admission estimate for processing text with the
// given model: approximate tokens, inflated by the buffer factor, priced
// per 1000 tokens. Four decimal places.
func EstimateCost(text, model string) decimal.Decimal {
	tokens := decimal.NewFromInt(int64(CountTokens(text)))
	return tokens.Mul(estimateBuffer).Mul(PricePer1K(model)).Div(perThousand).Round(4)
}

// CostFor converts an actual total token count into a charge for the model.
// Four decimal places.
func CostFor(totalTokens int, model string) decimal.Decimal {
	tokens := decimal.NewFromInt(int64(totalTokens))
	return tokens.Mul(PricePer1K(model)).Div(perThousand).Round(4)
}
