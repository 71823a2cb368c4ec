package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

// UnknownIndicator groups active signals whose prediction carries no
// target indicator.
const UnknownIndicator = "unknown"

// DefaultTimeframeDays is assumed when a signal has an expiry but no
// stated timeframe.
const DefaultTimeframeDays = 30

// Result is the weighted directional consensus over a set of signals.
type Result struct {
	BullishPct   int    `json:"bullish_pct"`
	BearishPct   int    `json:"bearish_pct"`
	Label        string `json:"label"`
	Direction    string `json:"direction"`
	TotalSignals int    `json:"total_signals"`
	UpCount      int    `json:"up_count"`
	DownCount    int    `json:"down_count"`
	StableCount  int    `json:"stable_count"`
}

// Group is a consensus over one partition of the active signals.
type Group struct {
	Key string `json:"key"`
	Result
}

// NoData is the explicit shape returned when no active signals exist.
func NoData() Result {
	return Result{
		BullishPct: 50,
		BearishPct: 50,
		Label:      "NO DATA",
		Direction:  "neutral",
	}
}

// Compute aggregates active signals into a directional consensus. Signals
// whose status is anything but active are excluded entirely. The result
// is deterministic given now; there is no hidden state.
func Compute(signals []model.Prediction, now time.Time) Result {
	var (
		positiveSum float64
		totalAbsSum float64
		res         Result
	)

	for _, s := range signals {
		if s.Status != model.PredictionActive {
			continue
		}
		w := confidenceWeight(s.Confidence) * freshnessWeight(s, now)

		res.TotalSignals++
		switch s.Direction {
		case model.DirectionUp:
			res.UpCount++
			positiveSum += w
			totalAbsSum += w
		case model.DirectionDown:
			res.DownCount++
			totalAbsSum += w
		case model.DirectionStable:
			// Stable signals are half-weighted on both sides: they
			// dilute the denominator without fully neutralizing it.
			res.StableCount++
			positiveSum += 0.5 * w
			totalAbsSum += 0.5 * w
		}
	}

	if res.TotalSignals == 0 || totalAbsSum <= 0 {
		nd := NoData()
		nd.TotalSignals = res.TotalSignals
		nd.UpCount = res.UpCount
		nd.DownCount = res.DownCount
		nd.StableCount = res.StableCount
		return nd
	}

	res.BullishPct = int(math.Round(positiveSum / totalAbsSum * 100))
	res.BearishPct = 100 - res.BullishPct
	res.Label, res.Direction = label(res.BullishPct)
	return res
}

// GroupByIndicator partitions active signals by target indicator and
// computes a consensus per group. Groups are ordered by signal count,
// then by how unambiguous the consensus is.
func GroupByIndicator(signals []model.Prediction, now time.Time) []Group {
	return GroupBy(signals, now, func(p model.Prediction) string {
		if p.TargetIndicator == "" {
			return UnknownIndicator
		}
		return p.TargetIndicator
	})
}

// GroupBy partitions active signals by an arbitrary key and computes a
// consensus per group, sorted by (count desc, |bullish-50| desc).
func GroupBy(signals []model.Prediction, now time.Time, key func(model.Prediction) string) []Group {
	buckets := make(map[string][]model.Prediction)
	for _, s := range signals {
		if s.Status != model.PredictionActive {
			continue
		}
		k := key(s)
		buckets[k] = append(buckets[k], s)
	}

	groups := make([]Group, 0, len(buckets))
	for k, sigs := range buckets {
		groups = append(groups, Group{Key: k, Result: Compute(sigs, now)})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalSignals != groups[j].TotalSignals {
			return groups[i].TotalSignals > groups[j].TotalSignals
		}
		ci := clarity(groups[i].BullishPct)
		cj := clarity(groups[j].BullishPct)
		if ci != cj {
			return ci > cj
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}

func clarity(bullishPct int) int {
	d := bullishPct - 50
	if d < 0 {
		return -d
	}
	return d
}

func label(bullishPct int) (string, string) {
	switch {
	case bullishPct > 55:
		return fmt.Sprintf("▲ %d%% UP", bullishPct), "bullish"
	case bullishPct < 45:
		return fmt.Sprintf("▼ %d%% DOWN", 100-bullishPct), "bearish"
	default:
		return fmt.Sprintf("→ %d%% FLAT", bullishPct), "neutral"
	}
}

func confidenceWeight(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	case model.ConfidenceLow:
		return 1
	}
	// Unknown confidence from upstream counts as medium.
	return 2
}

// freshnessWeight discounts signals approaching expiry. A signal with no
// expiry carries full weight.
func freshnessWeight(p model.Prediction, now time.Time) float64 {
	if p.ExpiresAt == nil {
		return 1.0
	}
	timeframe := p.TimeframeDays
	if timeframe <= 0 {
		timeframe = DefaultTimeframeDays
	}

	daysRemaining := p.ExpiresAt.Sub(now).Hours() / 24
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	f := daysRemaining / float64(timeframe)
	if f < 0.1 {
		return 0.1
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
