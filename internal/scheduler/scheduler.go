package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marketlens/pulse/internal/store"
	"github.com/marketlens/pulse/pkg/alert"
	"github.com/marketlens/pulse/pkg/pipeline"
)

// Scheduler runs the periodic evaluation pass: load snapshot, run the
// pipeline, persist mutation intents, alert on notable outcomes.
type Scheduler struct {
	store        store.Store
	pipe         *pipeline.Pipeline
	alertMgr     *alert.Manager
	interval     time.Duration
	alertClarity int
	minSignals   int

	hotSeen map[string]bool
}

// New creates a new scheduler.
func New(
	s store.Store,
	pipe *pipeline.Pipeline,
	alertMgr *alert.Manager,
	interval time.Duration,
	alertClarity, minSignals int,
) *Scheduler {
	if interval == 0 {
		interval = 24 * time.Hour
	}
	if alertClarity == 0 {
		alertClarity = 15
	}
	if minSignals == 0 {
		minSignals = 3
	}
	return &Scheduler{
		store:        s,
		pipe:         pipe,
		alertMgr:     alertMgr,
		interval:     interval,
		alertClarity: alertClarity,
		minSignals:   minSignals,
		hotSeen:      make(map[string]bool),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial evaluation...")
	s.evaluate(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (evaluate every %s)\n", s.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintln(os.Stderr, "scheduler: evaluating...")
			s.evaluate(ctx)
		}
	}
}

// Evaluate runs one pass outside the loop. Used by the evaluate command
// and the HTTP trigger.
func (s *Scheduler) Evaluate(ctx context.Context) (*pipeline.Batch, error) {
	snap, err := s.store.LoadSnapshot(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	batch, err := s.pipe.Run(ctx, *snap)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	if err := s.store.Apply(ctx, batch); err != nil {
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	return batch, nil
}

func (s *Scheduler) evaluate(ctx context.Context) {
	batch, err := s.Evaluate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  evaluation error: %v\n", err)
		return
	}

	for _, e := range batch.Errors {
		fmt.Fprintf(os.Stderr, "  skipped %s\n", e.Error())
	}
	fmt.Fprintf(os.Stderr, "  events: %d, topics: %d, investigations: %d, predictions: %d, consensus: %s\n",
		len(batch.Events), len(batch.Topics), len(batch.Investigations), len(batch.Predictions),
		batch.Consensus.Overall.Label)

	if !s.alertMgr.HasNotifiers() {
		return
	}
	s.alertHotTopics(ctx, batch)
	s.alertConsensus(ctx, batch)
}

func (s *Scheduler) alertHotTopics(ctx context.Context, batch *pipeline.Batch) {
	for _, t := range batch.Topics {
		if !t.IsHot || s.hotSeen[t.Topic] {
			continue
		}
		s.hotSeen[t.Topic] = true

		n := &alert.Notification{
			Kind:  "hot_topic",
			Title: fmt.Sprintf("Hot topic: %s", t.Topic),
			Body: fmt.Sprintf("%d occurrences in the last 7 days (%d related events)",
				t.OccurrenceCount, len(t.RelatedEventIDs)),
			EventIDs: t.RelatedEventIDs,
		}
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			fmt.Fprintf(os.Stderr, "  alert error for topic %q: %v\n", t.Topic, err)
		}
	}
}

func (s *Scheduler) alertConsensus(ctx context.Context, batch *pipeline.Batch) {
	for _, g := range batch.Consensus.ByIndicator {
		clarity := g.BullishPct - 50
		if clarity < 0 {
			clarity = -clarity
		}
		if g.TotalSignals < s.minSignals || clarity < s.alertClarity {
			continue
		}

		n := &alert.Notification{
			Kind:       "consensus",
			Title:      fmt.Sprintf("Consensus on %s: %s", g.Key, g.Label),
			Body:       fmt.Sprintf("%d active signals point %s on %s", g.TotalSignals, g.Direction, g.Key),
			Indicator:  g.Key,
			Label:      g.Label,
			Direction:  g.Direction,
			BullishPct: g.BullishPct,
			Signals:    g.TotalSignals,
		}
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			fmt.Fprintf(os.Stderr, "  alert error for indicator %q: %v\n", g.Key, err)
		}
	}
}
