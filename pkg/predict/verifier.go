package predict

import (
	"fmt"
	"math"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

// DefaultStableTolerance is the relative band a "stable" prediction may
// drift within when no explicit range is given.
const DefaultStableTolerance = 0.02

// Verifier checks pending predictions against observed indicator values.
type Verifier struct {
	stableTolerance float64
}

// NewVerifier creates a verifier. A non-positive tolerance falls back to
// the default.
func NewVerifier(stableTolerance float64) *Verifier {
	if stableTolerance <= 0 {
		stableTolerance = DefaultStableTolerance
	}
	return &Verifier{stableTolerance: stableTolerance}
}

// Observation is an observed indicator value at or after the check date.
// Missing observations resolve predictions as expired, not failed.
type Observation struct {
	Value float64
	OK    bool
}

// Outcome is the mutation intent for one prediction.
type Outcome struct {
	Status       model.PredictionStatus
	ActualResult string
	VerifiedAt   *time.Time
	Changed      bool
}

// Verify decides a prediction's outcome at today. Already-resolved
// predictions are a no-op, and nothing happens before the check date, so
// re-running a batch is safe.
func (v *Verifier) Verify(p model.Prediction, obs Observation, today time.Time) (Outcome, error) {
	if err := model.ValidatePrediction(&p); err != nil {
		return Outcome{}, err
	}

	if !p.Unresolved() {
		return Outcome{Status: p.Status, ActualResult: p.ActualResult, VerifiedAt: p.VerifiedAt}, nil
	}
	if today.Before(p.CheckByDate) {
		return Outcome{Status: p.Status}, nil
	}

	if !obs.OK {
		// Unmeasured is not wrong: no observed value by the check date
		// resolves as expired.
		t := today
		return Outcome{
			Status:       model.PredictionExpired,
			ActualResult: "no observed value for " + p.TargetIndicator,
			VerifiedAt:   &t,
			Changed:      true,
		}, nil
	}

	verified := v.holds(p, obs.Value)
	status := model.PredictionFailed
	if verified {
		status = model.PredictionVerified
	}

	t := today
	return Outcome{
		Status: status,
		ActualResult: fmt.Sprintf("%s observed %.4f (baseline %.4f)",
			p.TargetIndicator, obs.Value, p.BaselineValue),
		VerifiedAt: &t,
		Changed:    true,
	}, nil
}

// holds reports whether the observed value bears out the prediction.
// Explicit bounds override the direction field; an absent bound is
// unbounded on that side.
func (v *Verifier) holds(p model.Prediction, observed float64) bool {
	if p.TargetRangeLow != nil || p.TargetRangeHigh != nil {
		if p.TargetRangeLow != nil && observed < *p.TargetRangeLow {
			return false
		}
		if p.TargetRangeHigh != nil && observed > *p.TargetRangeHigh {
			return false
		}
		return true
	}

	switch p.Direction {
	case model.DirectionUp:
		return observed > p.BaselineValue
	case model.DirectionDown:
		return observed < p.BaselineValue
	case model.DirectionStable:
		band := v.stableTolerance * math.Abs(p.BaselineValue)
		return math.Abs(observed-p.BaselineValue) <= band
	}
	return false
}
