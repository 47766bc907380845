package pricing

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeKeepsKnownModels(t *testing.T) {
	for _, m := range []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"} {
		if got := Normalize(m); got != m {
			t.Fatalf("Normalize(%q) = %q", m, got)
		}
	}
}

func TestNormalizeFallsBackToDefault(t *testing.T) {
	if got := Normalize("gpt-9-ultra"); got != DefaultModel {
		t.Fatalf("Normalize unknown = %q, want %q", got, DefaultModel)
	}
	if got := Normalize(""); got != DefaultModel {
		t.Fatalf("Normalize empty = %q, want %q", got, DefaultModel)
	}
}

func TestCostForIsDecimalExact(t *testing.T) {
	// 1230 tokens on gpt-4o: 1230/1000 * 0.01 = 0.0123
	got := CostFor(1230, "gpt-4o")
	if !got.Equal(decimal.RequireFromString("0.0123")) {
		t.Fatalf("CostFor = %s, want 0.0123", got)
	}
}

func TestCostForUnknownModelUsesDefaultPrice(t *testing.T) {
	if !CostFor(1000, "nope").Equal(CostFor(1000, DefaultModel)) {
		t.Fatalf("unknown model should price as default")
	}
}

func TestRepeatedAdditionNoDrift(t *testing.T) {
	// 1000 additions of 0.0001 must equal exactly 0.1.
	sum := decimal.Zero
	step := decimal.RequireFromString("0.0001")
	for i := 0; i < 1000; i++ {
		sum = sum.Add(step)
	}
	if !sum.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("sum = %s, want 0.1", sum)
	}
}

func TestEstimateCostAppliesBuffer(t *testing.T) {
	text := strings.Repeat("a", 4000) // ~1000 tokens
	// 1000 * 1.5 / 1000 * 0.01 = 0.015
	got := EstimateCost(text, "gpt-4o")
	if !got.Equal(decimal.RequireFromString("0.015")) {
		t.Fatalf("EstimateCost = %s, want 0.015", got)
	}
}

func TestMaxTokens(t *testing.T) {
	if MaxTokens("gpt-4") != 8192 {
		t.Fatalf("gpt-4 max tokens wrong")
	}
	if MaxTokens("unknown") != 4000 {
		t.Fatalf("unknown model should get conservative default")
	}
}
