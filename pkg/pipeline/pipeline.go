package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketlens/pulse/pkg/consensus"
	"github.com/marketlens/pulse/pkg/investigation"
	"github.com/marketlens/pulse/pkg/model"
	"github.com/marketlens/pulse/pkg/predict"
	"github.com/marketlens/pulse/pkg/score"
	"github.com/marketlens/pulse/pkg/topic"
)

// Snapshot is the immutable input to one batch pass. The caller loads it
// from storage; the pipeline never touches shared state.
type Snapshot struct {
	Events         []model.Event
	Investigations []model.Investigation
	Predictions    []model.Prediction
	// Readings holds the latest observed value per indicator.
	Readings map[string]float64
	Today    time.Time
}

// EventUpdate is the mutation intent for one event.
type EventUpdate struct {
	EventID      string               `json:"event_id"`
	CurrentScore float64              `json:"current_score"`
	DecayFactor  float64              `json:"decay_factor"`
	BoostFactor  float64              `json:"boost_factor"`
	Section      model.DisplaySection `json:"display_section"`
	LastBoostAt  *time.Time           `json:"last_boost_at,omitempty"`
}

// InvestigationUpdate pairs an investigation with its advance outcome.
type InvestigationUpdate struct {
	InvestigationID string `json:"investigation_id"`
	investigation.Outcome
}

// PredictionUpdate pairs a prediction with its verification outcome.
type PredictionUpdate struct {
	PredictionID string `json:"prediction_id"`
	predict.Outcome
}

// EntityError records a single entity's evaluation failure. One bad
// entity never fails the batch.
type EntityError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Err  error  `json:"-"`
}

func (e EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

// ConsensusReport is the ephemeral output of the aggregation stage,
// recomputed on demand and never persisted.
type ConsensusReport struct {
	Overall     consensus.Result  `json:"overall"`
	ByIndicator []consensus.Group `json:"by_indicator"`
	ByTrend     []consensus.Group `json:"by_trend"`
}

// Batch is the full output of one pass: mutation intents for the
// persistence layer plus the consensus report for presentation.
type Batch struct {
	Events         []EventUpdate         `json:"events"`
	Topics         []model.TopicRecord   `json:"topics"`
	Investigations []InvestigationUpdate `json:"investigations"`
	Predictions    []PredictionUpdate    `json:"predictions"`
	Consensus      ConsensusReport       `json:"consensus"`
	Errors         []EntityError         `json:"-"`
}

// Pipeline wires the five evaluation stages and the consensus aggregator
// into one batch pass.
type Pipeline struct {
	scorer   *score.Model
	verifier *predict.Verifier
	workers  int
	metrics  *metrics
}

// New creates a pipeline. workers bounds entity-level parallelism; zero
// means 8.
func New(scorer *score.Model, verifier *predict.Verifier, workers int, reg Registerer) *Pipeline {
	if workers <= 0 {
		workers = 8
	}
	return &Pipeline{
		scorer:   scorer,
		verifier: verifier,
		workers:  workers,
		metrics:  newMetrics(reg),
	}
}

// Run executes one batch pass over the snapshot: score decay and display
// classification, topic hotness, investigation lifecycle, prediction
// verification, then a single consensus run over the resulting active
// signals. Entities are evaluated concurrently; failures are collected
// per entity.
func (p *Pipeline) Run(ctx context.Context, snap Snapshot) (*Batch, error) {
	start := time.Now()
	today := snap.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}

	batch := &Batch{}
	var mu sync.Mutex

	// Follow-up boosts and evidence candidates come from the same scan
	// over today's events.
	boosts := make(map[string][]time.Time)
	candidates := make(map[string][]investigation.Candidate)
	eventByID := make(map[string]*model.Event, len(snap.Events))
	for i := range snap.Events {
		eventByID[snap.Events[i].ID] = &snap.Events[i]
	}
	for i := range snap.Events {
		ev := &snap.Events[i]
		if !ev.IsFollowUp || ev.FollowsUpOn == "" {
			continue
		}
		if target, ok := eventByID[ev.FollowsUpOn]; ok {
			if target.LastBoostAt == nil || ev.PublishedAt.After(*target.LastBoostAt) {
				boosts[target.ID] = append(boosts[target.ID], ev.PublishedAt)
			}
			continue
		}
		// Not an event reference: treat as evidence for an
		// investigation of that ID.
		et := ev.EvidenceType
		if et == "" {
			et = model.EvidenceNeutral
		}
		candidates[ev.FollowsUpOn] = append(candidates[ev.FollowsUpOn], investigation.Candidate{
			EventID:    ev.ID,
			Type:       et,
			Summary:    ev.EvidenceSummary,
			Conclusive: ev.Conclusive,
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	// Stage 1+2: decay/boost and display classification per event.
	for i := range snap.Events {
		ev := snap.Events[i]
		g.Go(func() error {
			if err := model.ValidateEvent(&ev); err != nil {
				mu.Lock()
				batch.Errors = append(batch.Errors, EntityError{Kind: "event", ID: ev.ID, Err: err})
				mu.Unlock()
				return nil
			}
			res := p.scorer.Evaluate(&ev, boosts[ev.ID], today)
			mu.Lock()
			batch.Events = append(batch.Events, EventUpdate{
				EventID:      ev.ID,
				CurrentScore: res.CurrentScore,
				DecayFactor:  res.DecayFactor,
				BoostFactor:  res.BoostFactor,
				Section:      res.Section,
				LastBoostAt:  res.LastBoostAt,
			})
			mu.Unlock()
			p.metrics.eventsEvaluated.Inc()
			return nil
		})
	}

	// Stage 4: investigation lifecycle per investigation.
	for i := range snap.Investigations {
		inv := snap.Investigations[i]
		g.Go(func() error {
			out, err := investigation.Advance(inv, candidates[inv.ID], today)
			mu.Lock()
			if err != nil {
				batch.Errors = append(batch.Errors, EntityError{Kind: "investigation", ID: inv.ID, Err: err})
			} else {
				batch.Investigations = append(batch.Investigations, InvestigationUpdate{InvestigationID: inv.ID, Outcome: out})
			}
			mu.Unlock()
			return nil
		})
	}

	// Stage 5: prediction verification per prediction.
	for i := range snap.Predictions {
		pred := snap.Predictions[i]
		g.Go(func() error {
			obs := predict.Observation{}
			if v, ok := snap.Readings[pred.TargetIndicator]; ok {
				obs = predict.Observation{Value: v, OK: true}
			}
			out, err := p.verifier.Verify(pred, obs, today)
			mu.Lock()
			if err != nil {
				batch.Errors = append(batch.Errors, EntityError{Kind: "prediction", ID: pred.ID, Err: err})
			} else {
				batch.Predictions = append(batch.Predictions, PredictionUpdate{PredictionID: pred.ID, Outcome: out})
				p.metrics.predictionsVerified.WithLabelValues(string(out.Status)).Inc()
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	// Stage 3: topic hotness is order-sensitive per topic, run serially.
	tracker := topic.NewTracker()
	ordered := append([]model.Event(nil), snap.Events...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
	})
	for i := range ordered {
		if ordered[i].Topic != "" {
			tracker.Record(ordered[i].Topic, ordered[i].ID, ordered[i].PublishedAt)
		}
	}
	batch.Topics = tracker.Records(today)

	// Stage 6: consensus over the post-verification active set.
	signals := p.activeSignals(snap, batch)
	batch.Consensus = ConsensusReport{
		Overall:     consensus.Compute(signals, today),
		ByIndicator: consensus.GroupByIndicator(signals, today),
		ByTrend: consensus.GroupBy(signals, today, func(pr model.Prediction) string {
			if ev, ok := eventByID[pr.SourceEventID]; ok && ev.Topic != "" {
				return topic.Normalize(ev.Topic)
			}
			return consensus.UnknownIndicator
		}),
	}
	p.metrics.consensusRuns.Inc()

	sortBatch(batch)
	p.metrics.batchDuration.Observe(time.Since(start).Seconds())
	return batch, nil
}

// activeSignals applies this batch's verification outcomes to the
// prediction snapshot so freshly resolved predictions drop out of the
// consensus.
func (p *Pipeline) activeSignals(snap Snapshot, batch *Batch) []model.Prediction {
	status := make(map[string]model.PredictionStatus, len(batch.Predictions))
	for _, u := range batch.Predictions {
		status[u.PredictionID] = u.Status
	}

	var signals []model.Prediction
	for _, pred := range snap.Predictions {
		if st, ok := status[pred.ID]; ok {
			pred.Status = st
		}
		if pred.Status == model.PredictionActive {
			signals = append(signals, pred)
		}
	}
	return signals
}

// sortBatch makes output ordering deterministic regardless of worker
// scheduling.
func sortBatch(b *Batch) {
	sort.Slice(b.Events, func(i, j int) bool { return b.Events[i].EventID < b.Events[j].EventID })
	sort.Slice(b.Investigations, func(i, j int) bool {
		return b.Investigations[i].InvestigationID < b.Investigations[j].InvestigationID
	})
	sort.Slice(b.Predictions, func(i, j int) bool {
		return b.Predictions[i].PredictionID < b.Predictions[j].PredictionID
	})
	sort.Slice(b.Errors, func(i, j int) bool {
		if b.Errors[i].Kind != b.Errors[j].Kind {
			return b.Errors[i].Kind < b.Errors[j].Kind
		}
		return b.Errors[i].ID < b.Errors[j].ID
	})
}
