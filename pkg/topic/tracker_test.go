package topic

import (
	"testing"
	"time"
)

var day = 24 * time.Hour

func TestRecordThreeOccurrencesTurnsHot(t *testing.T) {
	tr := NewTracker()
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	rec := tr.Record("omo_injection", "ev-1", today.Add(-3*day))
	if rec.IsHot {
		t.Fatal("one occurrence should not be hot")
	}
	rec = tr.Record("omo_injection", "ev-2", today.Add(-1*day))
	if rec.IsHot {
		t.Fatal("two occurrences should not be hot")
	}
	rec = tr.Record("omo_injection", "ev-3", today)
	if !rec.IsHot {
		t.Fatal("three occurrences within 7 days should be hot")
	}
	if rec.OccurrenceCount != 3 {
		t.Fatalf("expected count 3, got %d", rec.OccurrenceCount)
	}
}

func TestRecordWindowExcludesOldOccurrences(t *testing.T) {
	tr := NewTracker()
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	tr.Record("rate hike", "ev-1", today.Add(-20*day))
	tr.Record("rate hike", "ev-2", today.Add(-10*day))
	tr.Record("rate hike", "ev-3", today.Add(-1*day))
	rec := tr.Get("rate hike", today)

	if rec.OccurrenceCount != 1 {
		t.Fatalf("expected 1 in-window occurrence, got %d", rec.OccurrenceCount)
	}
	if rec.IsHot {
		t.Fatal("stale occurrences must not count toward hotness")
	}
	// History is retained even outside the window.
	if len(rec.RelatedEventIDs) != 3 {
		t.Fatalf("expected 3 related events, got %d", len(rec.RelatedEventIDs))
	}
}

func TestRecordIdempotentPerEvent(t *testing.T) {
	tr := NewTracker()
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	tr.Record("liquidity", "ev-1", today)
	tr.Record("liquidity", "ev-1", today)
	rec := tr.Record("liquidity", "ev-1", today)

	if rec.OccurrenceCount != 1 {
		t.Fatalf("re-recording the same event double counted: %d", rec.OccurrenceCount)
	}
}

func TestNormalizeMergesNearDuplicates(t *testing.T) {
	tr := NewTracker()
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	tr.Record("OMO Injection", "ev-1", today)
	tr.Record("omo  injection", "ev-2", today)
	rec := tr.Record("  omo injection ", "ev-3", today)

	if rec.Topic != "omo_injection" {
		t.Fatalf("expected normalized label omo_injection, got %q", rec.Topic)
	}
	if !rec.IsHot {
		t.Fatalf("normalized variants should count together, got count %d", rec.OccurrenceCount)
	}
}

func TestRecordEmptyTopicIgnored(t *testing.T) {
	tr := NewTracker()
	if rec := tr.Record("  ", "ev-1", time.Now()); rec != nil {
		t.Fatalf("expected nil record for blank topic, got %+v", rec)
	}
}

func TestRecordsOrderedHotFirst(t *testing.T) {
	tr := NewTracker()
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	tr.Record("quiet", "ev-1", today)
	for i, id := range []string{"a", "b", "c", "d"} {
		tr.Record("busy", id, today.Add(-time.Duration(i)*day))
	}

	recs := tr.Records(today)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Topic != "busy" || !recs[0].IsHot {
		t.Fatalf("expected hot topic first, got %+v", recs[0])
	}
}
