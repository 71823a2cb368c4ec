package ingest

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

func TestDecodeAssignsIDsAndDefaults(t *testing.T) {
	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	payload := `{
		"events": [
			{"base_score": 80, "published_at": "2026-08-10T06:00:00Z", "topic": "omo injection"}
		],
		"investigations": [
			{"question": "will the PBoC extend the facility"}
		],
		"predictions": [
			{"direction": "up", "confidence": "high", "target_indicator": "repo_rate_7d", "timeframe_days": 14}
		],
		"readings": [
			{"indicator": "repo_rate_7d", "value": 2.1}
		]
	}`

	p, err := Decode(strings.NewReader(payload), now)
	if err != nil {
		t.Fatal(err)
	}

	ev := p.Events[0]
	if ev.ID == "" {
		t.Fatal("expected generated event ID")
	}
	if ev.DecayFactor != 1.0 || ev.BoostFactor != 1.0 {
		t.Fatalf("expected factor defaults 1.0, got %f/%f", ev.DecayFactor, ev.BoostFactor)
	}

	inv := p.Investigations[0]
	if inv.Status != model.StatusOpen || inv.Priority != model.PriorityMedium {
		t.Fatalf("expected open/medium defaults, got %s/%s", inv.Status, inv.Priority)
	}
	if !inv.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at defaulted to now, got %v", inv.CreatedAt)
	}

	pred := p.Predictions[0]
	if pred.Status != model.PredictionActive {
		t.Fatalf("expected active default, got %s", pred.Status)
	}
	want := now.AddDate(0, 0, 14)
	if !pred.CheckByDate.Equal(want) {
		t.Fatalf("expected check_by_date %v from timeframe, got %v", want, pred.CheckByDate)
	}

	if !p.Readings[0].ObservedAt.Equal(now) {
		t.Fatalf("expected observed_at defaulted to now, got %v", p.Readings[0].ObservedAt)
	}
}

func TestDecodeFailsFastOnUnknownEnums(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		payload string
	}{
		{
			"unknown direction",
			`{"predictions": [{"direction": "sideways", "confidence": "high", "check_by_date": "2026-09-01T00:00:00Z"}]}`,
		},
		{
			"unknown confidence",
			`{"predictions": [{"direction": "up", "confidence": "certain", "check_by_date": "2026-09-01T00:00:00Z"}]}`,
		},
		{
			"unknown evidence type",
			`{"events": [{"base_score": 50, "published_at": "2026-08-01T00:00:00Z", "evidence_type": "maybe"}]}`,
		},
		{
			"unknown investigation status",
			`{"investigations": [{"question": "q", "status": "paused"}]}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.payload), now)
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDecodeRejectsBadScores(t *testing.T) {
	now := time.Now()
	for _, score := range []int{0, -5, 101} {
		payload := `{"events": [{"base_score": ` + strconv.Itoa(score) + `, "published_at": "2026-08-01T00:00:00Z"}]}`
		_, err := Decode(strings.NewReader(payload), now)
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Fatalf("base score %d: expected ErrInvalidInput, got %v", score, err)
		}
	}
}

func TestDecodeRejectsPredictionWithoutDeadline(t *testing.T) {
	now := time.Now()
	payload := `{"predictions": [{"direction": "up", "confidence": "low"}]}`
	_, err := Decode(strings.NewReader(payload), now)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"events": [`), time.Now())
	if err == nil {
		t.Fatal("expected decode error")
	}
}
