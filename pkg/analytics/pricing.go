// Package analytics implements cost accounting and override-rule
// rewriting for the response cache (C7): per-model pricing, the
// per-request ApiCallRecord, and cross-model aggregation.
package analytics

import "log/slog"

// ModelPricing is a per-million-token price table entry. CacheReadPerM
// covers upstream prompt-cache discounts where a provider exposes them;
// it is zero for models that don't.
type ModelPricing struct {
	InputPerM     float64
	OutputPerM    float64
	CacheReadPerM float64
}

// pricingTable is the built-in pricing table. Figures are grounded on the
// per-model rates the original implementation's metrics-engine tests
// assert against for claude-sonnet-4.5 and claude-haiku-4.5; the rest
// extend the same table for the other providers SPEC_FULL.md wires in.
var pricingTable = map[string]ModelPricing{
	"claude-sonnet-4.5": {InputPerM: 3.00, OutputPerM: 15.00, CacheReadPerM: 0.30},
	"claude-haiku-4.5":  {InputPerM: 0.80, OutputPerM: 4.00, CacheReadPerM: 0.08},
	"claude-opus-4.5":   {InputPerM: 15.00, OutputPerM: 75.00, CacheReadPerM: 1.50},
	"gpt-4o":            {InputPerM: 2.50, OutputPerM: 10.00},
	"gpt-4o-mini":       {InputPerM: 0.15, OutputPerM: 0.60},
	"deepseek-chat":     {InputPerM: 0.27, OutputPerM: 1.10},
}

// Cost computes (input/1e6)*input_price + (output/1e6)*output_price per
// spec.md §4.5. Unknown models cost 0 and log a warning rather than fail
// the request — a pricing-table gap must never block a response.
func Cost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		slog.Warn("no pricing entry for model, costing as zero", "model", model)
		return 0
	}
	return float64(inputTokens)/1e6*pricing.InputPerM + float64(outputTokens)/1e6*pricing.OutputPerM
}
