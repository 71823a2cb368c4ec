package predict

import (
	"errors"
	"testing"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

func basePrediction(direction model.Direction) model.Prediction {
	return model.Prediction{
		ID:              "pred-1",
		Confidence:      model.ConfidenceMedium,
		Direction:       direction,
		TargetIndicator: "repo_rate_7d",
		BaselineValue:   2.0,
		Status:          model.PredictionActive,
		CheckByDate:     time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestVerifyUpDirections(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		observed Observation
		want     model.PredictionStatus
	}{
		{"higher than baseline verifies", Observation{Value: 2.5, OK: true}, model.PredictionVerified},
		{"lower than baseline fails", Observation{Value: 1.5, OK: true}, model.PredictionFailed},
		{"no observation expires", Observation{}, model.PredictionExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := v.Verify(basePrediction(model.DirectionUp), tc.observed, today)
			if err != nil {
				t.Fatal(err)
			}
			if out.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, out.Status)
			}
			if out.VerifiedAt == nil || !out.VerifiedAt.Equal(today) {
				t.Fatalf("terminal status must set verified_at, got %v", out.VerifiedAt)
			}
		})
	}
}

func TestVerifyDownDirection(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	out, err := v.Verify(basePrediction(model.DirectionDown), Observation{Value: 1.8, OK: true}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.PredictionVerified {
		t.Fatalf("expected verified, got %s", out.Status)
	}
}

func TestVerifyStableToleranceBand(t *testing.T) {
	v := NewVerifier(0.02)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	// Baseline 2.0, 2% tolerance = ±0.04.
	out, _ := v.Verify(basePrediction(model.DirectionStable), Observation{Value: 2.03, OK: true}, today)
	if out.Status != model.PredictionVerified {
		t.Fatalf("within band: expected verified, got %s", out.Status)
	}

	out, _ = v.Verify(basePrediction(model.DirectionStable), Observation{Value: 2.10, OK: true}, today)
	if out.Status != model.PredictionFailed {
		t.Fatalf("outside band: expected failed, got %s", out.Status)
	}
}

func TestVerifyBoundsOverrideDirection(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)
	low, high := 1.0, 1.9

	// Direction says up, but observed falls inside the stated range, which
	// wins.
	p := basePrediction(model.DirectionUp)
	p.TargetRangeLow = &low
	p.TargetRangeHigh = &high

	out, err := v.Verify(p, Observation{Value: 1.5, OK: true}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.PredictionVerified {
		t.Fatalf("expected bounds to verify, got %s", out.Status)
	}

	out, _ = v.Verify(p, Observation{Value: 2.5, OK: true}, today)
	if out.Status != model.PredictionFailed {
		t.Fatalf("expected out-of-range to fail, got %s", out.Status)
	}
}

func TestVerifyAbsentBoundIsUnbounded(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)
	low := 1.0

	p := basePrediction(model.DirectionDown)
	p.TargetRangeLow = &low

	out, _ := v.Verify(p, Observation{Value: 1000, OK: true}, today)
	if out.Status != model.PredictionVerified {
		t.Fatalf("missing high bound should be unbounded above, got %s", out.Status)
	}
}

func TestVerifyBeforeCheckDateIsNoop(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC)

	out, err := v.Verify(basePrediction(model.DirectionUp), Observation{Value: 3, OK: true}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.PredictionActive || out.Changed {
		t.Fatalf("expected untouched active prediction, got %s changed=%v", out.Status, out.Changed)
	}
}

func TestVerifyResolvedIsIdempotent(t *testing.T) {
	v := NewVerifier(0)
	today := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	verifiedAt := today.AddDate(0, 0, -1)
	p := basePrediction(model.DirectionUp)
	p.Status = model.PredictionVerified
	p.VerifiedAt = &verifiedAt

	out, err := v.Verify(p, Observation{Value: 0.1, OK: true}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.PredictionVerified || out.Changed {
		t.Fatalf("re-verifying a resolved prediction must be a no-op, got %s", out.Status)
	}
	if out.VerifiedAt == nil || !out.VerifiedAt.Equal(verifiedAt) {
		t.Fatalf("verified_at must be preserved, got %v", out.VerifiedAt)
	}
}

func TestVerifyRejectsInvalidPrediction(t *testing.T) {
	v := NewVerifier(0)
	today := time.Now()

	p := basePrediction(model.DirectionUp)
	p.TimeframeDays = -5

	_, err := v.Verify(p, Observation{}, today)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
