package analytics

// CostModel prices a cache hit against the live call it avoided. Values are
// configuration, not behavior under test — the aggregator's formulas are
// what matters, not these numbers.
//
// Collapsed from a per-model, per-token pricing table down to a per-hit
// savings estimate, since the gateway never sees token counts, only cache
// outcomes.
type CostModel struct {
	// AssumedLLMCallCost is the average USD cost of an LLM call a cache hit
	// avoids.
	AssumedLLMCallCost float64

	// TierCostPerHit is the marginal USD cost of serving a hit from each
	// tier (store round trips, embedding lookups for L3).
	TierCostPerHit map[string]float64

	// ToolCallSavings and DBQuerySavings are flat per-hit savings for
	// non-LLM kinds, where "avoided cost" isn't a token-priced API call.
	ToolCallSavings float64
	DBQuerySavings  float64
}

// DefaultCostModel returns the gateway's built-in pricing assumptions.
func DefaultCostModel() CostModel {
	return CostModel{
		AssumedLLMCallCost: 0.03,
		TierCostPerHit: map[string]float64{
			"L1": 0.00001,
			"L2": 0.0001,
			"L3": 0.0005,
		},
		ToolCallSavings: 0.002,
		DBQuerySavings:  0.001,
	}
}
