package topic

import (
	"sort"
	"strings"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

// HotWindow is the trailing window for hotness counting.
const HotWindow = 7 * 24 * time.Hour

// HotThreshold is the occurrence count at which a topic turns hot.
const HotThreshold = 3

type occurrence struct {
	eventID string
	date    time.Time
}

// Tracker maintains occurrence counts per normalized topic over a rolling
// 7-day window. It is a plain in-memory accumulator: the batch pipeline
// feeds it today's events and reads the records back out.
type Tracker struct {
	topics map[string]*entry
}

type entry struct {
	firstSeen   time.Time
	lastSeen    time.Time
	occurrences []occurrence
	seen        map[string]bool // event IDs already counted
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{topics: make(map[string]*entry)}
}

// Normalize lowercases and collapses whitespace in a topic label so
// near-duplicate labels from the classifier count together.
func Normalize(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), "_")
}

// Record registers one event occurrence of a topic on a date and returns
// the updated record. Re-recording the same (topic, event) pair is a
// no-op for the count. An empty topic returns nil.
func (t *Tracker) Record(topic, eventID string, date time.Time) *model.TopicRecord {
	key := Normalize(topic)
	if key == "" {
		return nil
	}

	e, ok := t.topics[key]
	if !ok {
		e = &entry{firstSeen: date, lastSeen: date, seen: make(map[string]bool)}
		t.topics[key] = e
	}

	if !e.seen[eventID] {
		e.seen[eventID] = true
		e.occurrences = append(e.occurrences, occurrence{eventID: eventID, date: date})
	}
	if date.Before(e.firstSeen) {
		e.firstSeen = date
	}
	if date.After(e.lastSeen) {
		e.lastSeen = date
	}

	return t.record(key, e, date)
}

// Get returns the record for a topic as of today, or nil if unseen.
func (t *Tracker) Get(topic string, today time.Time) *model.TopicRecord {
	key := Normalize(topic)
	e, ok := t.topics[key]
	if !ok {
		return nil
	}
	return t.record(key, e, today)
}

// Records returns all topic records as of today, hot topics first, then
// by occurrence count.
func (t *Tracker) Records(today time.Time) []model.TopicRecord {
	out := make([]model.TopicRecord, 0, len(t.topics))
	for key, e := range t.topics {
		out = append(out, *t.record(key, e, today))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsHot != out[j].IsHot {
			return out[i].IsHot
		}
		if out[i].OccurrenceCount != out[j].OccurrenceCount {
			return out[i].OccurrenceCount > out[j].OccurrenceCount
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (t *Tracker) record(key string, e *entry, today time.Time) *model.TopicRecord {
	cutoff := today.Add(-HotWindow)

	// Window count excludes stale occurrences; the event ID history is
	// retained in full.
	count := 0
	ids := make([]string, 0, len(e.occurrences))
	for _, occ := range e.occurrences {
		ids = append(ids, occ.eventID)
		if !occ.date.Before(cutoff) && !occ.date.After(today) {
			count++
		}
	}

	return &model.TopicRecord{
		Topic:           key,
		OccurrenceCount: count,
		FirstSeen:       e.firstSeen,
		LastSeen:        e.lastSeen,
		RelatedEventIDs: ids,
		IsHot:           count >= HotThreshold,
	}
}
