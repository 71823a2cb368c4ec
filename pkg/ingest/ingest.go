package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/marketlens/pulse/pkg/model"
)

// Payload is the external classifier's handoff for one run: scored
// events, freshly opened investigations, predictions, and today's
// indicator readings. The core does no crawling or language-model work;
// this package only parses and validates what the classifier produced.
type Payload struct {
	Events         []model.Event            `json:"events"`
	Investigations []model.Investigation    `json:"investigations"`
	Predictions    []model.Prediction       `json:"predictions"`
	Readings       []model.IndicatorReading `json:"readings"`
}

// Decode parses a classifier payload from r, rejecting malformed records
// fail-fast. Unknown enum strings never propagate past this boundary.
func Decode(r io.Reader, now time.Time) (*Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	for i := range p.Events {
		ev := &p.Events[i]
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if err := model.ValidateEvent(ev); err != nil {
			return nil, err
		}
		if ev.EvidenceType != "" {
			if _, err := model.ParseEvidenceType(string(ev.EvidenceType)); err != nil {
				return nil, err
			}
		}
		// Derived fields start from their defaults regardless of what the
		// classifier sent; the score model owns them.
		if ev.DecayFactor <= 0 {
			ev.DecayFactor = 1.0
		}
		if ev.BoostFactor <= 0 {
			ev.BoostFactor = 1.0
		}
	}

	for i := range p.Investigations {
		inv := &p.Investigations[i]
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		if inv.Question == "" {
			return nil, fmt.Errorf("%w: investigation %s missing question", model.ErrInvalidInput, inv.ID)
		}
		if inv.Status == "" {
			inv.Status = model.StatusOpen
		} else if _, err := model.ParseInvestigationStatus(string(inv.Status)); err != nil {
			return nil, err
		}
		if inv.Priority == "" {
			inv.Priority = model.PriorityMedium
		} else if _, err := model.ParsePriority(string(inv.Priority)); err != nil {
			return nil, err
		}
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = now
		}
	}

	for i := range p.Predictions {
		pred := &p.Predictions[i]
		if pred.ID == "" {
			pred.ID = uuid.NewString()
		}
		// A fresh prediction is a live signal unless the classifier
		// explicitly stages it as pending.
		if pred.Status == "" {
			pred.Status = model.PredictionActive
		} else if _, err := model.ParsePredictionStatus(string(pred.Status)); err != nil {
			return nil, err
		}
		if err := model.ValidatePrediction(pred); err != nil {
			return nil, err
		}
		if pred.CheckByDate.IsZero() {
			if pred.TimeframeDays <= 0 {
				return nil, fmt.Errorf("%w: prediction %s has neither check_by_date nor timeframe_days",
					model.ErrInvalidInput, pred.ID)
			}
			pred.CheckByDate = now.AddDate(0, 0, pred.TimeframeDays)
		}
		if pred.CreatedAt.IsZero() {
			pred.CreatedAt = now
		}
	}

	for i := range p.Readings {
		r := &p.Readings[i]
		if r.Indicator == "" {
			return nil, fmt.Errorf("%w: reading missing indicator", model.ErrInvalidInput)
		}
		if r.ObservedAt.IsZero() {
			r.ObservedAt = now
		}
	}

	return &p, nil
}
