// Package analytics implements the daily-counter aggregator: hit rate,
// tier-weighted latency, and estimated cost savings over a rolling window.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentcache/gateway/fingerprint"
	"github.com/agentcache/gateway/kvstore"
	"github.com/rs/zerolog"
)

// tierLatencyMs holds informational per-tier latency targets, used only
// to weight the aggregator's latency estimate.
var tierLatencyMs = map[string]float64{
	"L1": 3,
	"L2": 35,
	"L3": 150,
}

var tiers = []string{"L1", "L2", "L3"}

// Summary is the result of querying the aggregator over a period.
type Summary struct {
	PeriodDays        int
	Period            string
	TierHits          map[string]int64
	KindHits          map[string]int64
	Misses            int64
	Invalidations     int64
	HitRate           float64
	WeightedLatencyMs float64
	CostSavedUSD      float64
}

// Aggregator reads daily counters and derives summary metrics from them.
type Aggregator struct {
	store  kvstore.Store
	cost   CostModel
	logger zerolog.Logger
}

// New builds an Aggregator with the given cost model.
func New(store kvstore.Store, cost CostModel, logger zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, cost: cost, logger: logger.With().Str("component", "analytics").Logger()}
}

// Query sums daily counters over the trailing `days` days (inclusive of
// today) and derives hit rate, weighted latency, and cost saved. A day
// whose counters were never written reads as zero rather than an error —
// the counters are eventually consistent and sparse by construction.
func (a *Aggregator) Query(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		days = 1
	}

	tierHits := map[string]int64{"L1": 0, "L2": 0, "L3": 0}
	kindHits := map[string]int64{string(fingerprint.KindTool): 0, string(fingerprint.KindDB): 0}
	var misses, invalidations int64

	now := time.Now()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")

		for _, tier := range tiers {
			tierHits[tier] += a.readCounter(ctx, fingerprint.DailyHitKey(tier, date))
		}
		for _, kind := range []fingerprint.Kind{fingerprint.KindTool, fingerprint.KindDB} {
			kindHits[string(kind)] += a.readCounter(ctx, fingerprint.DailyKindHitKey(kind, date))
		}
		misses += a.readCounter(ctx, fingerprint.DailyMissKey(date))
		invalidations += a.readCounter(ctx, fingerprint.DailyInvalidationKey(date))
	}

	var totalHits int64
	for _, v := range tierHits {
		totalHits += v
	}

	var hitRate float64
	if totalHits+misses > 0 {
		hitRate = float64(totalHits) / float64(totalHits+misses)
	}

	var weightedLatency float64
	if totalHits > 0 {
		var sumLatency float64
		for tier, hits := range tierHits {
			sumLatency += float64(hits) * tierLatencyMs[tier]
		}
		weightedLatency = sumLatency / float64(totalHits)
	}

	var costSaved float64
	for tier, hits := range tierHits {
		costSaved += float64(hits) * (a.cost.AssumedLLMCallCost - a.cost.TierCostPerHit[tier])
	}
	costSaved += float64(kindHits[string(fingerprint.KindTool)]) * a.cost.ToolCallSavings
	costSaved += float64(kindHits[string(fingerprint.KindDB)]) * a.cost.DBQuerySavings

	return Summary{
		PeriodDays:        days,
		Period:            periodLabel(days),
		TierHits:          tierHits,
		KindHits:          kindHits,
		Misses:            misses,
		Invalidations:     invalidations,
		HitRate:           hitRate,
		WeightedLatencyMs: weightedLatency,
		CostSavedUSD:      costSaved,
	}, nil
}

// readCounter returns a single day's counter value. A storage failure for
// one day must not abort the whole window, so it is logged and treated the
// same as a missing key: zero.
func (a *Aggregator) readCounter(ctx context.Context, key string) int64 {
	v, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("counter read failed, treating as zero")
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		a.logger.Warn().Str("key", key).Str("value", v).Msg("non-numeric counter value, treating as zero")
		return 0
	}
	return n
}

// periodLabel renders a human-readable label for a day count, matching the
// conventional 1d/7d/30d window shorthand.
func periodLabel(days int) string {
	return fmt.Sprintf("%dd", days)
}
