package investigation

import (
	"fmt"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

// StaleAfter is how long an investigation may sit without evidence before
// it goes stale.
const StaleAfter = 14 * 24 * time.Hour

// Candidate is a pre-tagged piece of evidence for one investigation. The
// classifier decides relevance and evidence type upstream; the machine
// only applies transitions.
type Candidate struct {
	EventID    string
	Type       model.EvidenceType
	Summary    string
	Conclusive bool
	Resolution string
}

// Outcome is the mutation intent produced by one advance step. The
// machine never writes to shared storage; the persistence layer applies
// outcomes as the single writer.
type Outcome struct {
	Status         model.InvestigationStatus
	Evidence       []model.Evidence
	EvidenceCount  int
	LastEvidenceAt *time.Time
	ResolvedAt     *time.Time
	Resolution     string
	Changed        bool
}

// Advance applies today's candidate evidence to an investigation snapshot
// and returns the resulting state. Terminal states (resolved, escalated)
// only change through external action; stale can re-open on fresh
// evidence.
func Advance(inv model.Investigation, candidates []Candidate, today time.Time) (Outcome, error) {
	if inv.ID == "" {
		return Outcome{}, fmt.Errorf("%w: investigation missing id", model.ErrInvalidInput)
	}
	if _, err := model.ParseInvestigationStatus(string(inv.Status)); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Status:         inv.Status,
		Evidence:       append([]model.Evidence(nil), inv.Evidence...),
		LastEvidenceAt: inv.LastEvidenceAt,
		ResolvedAt:     inv.ResolvedAt,
		Resolution:     inv.Resolution,
	}

	// Automatic transitions stop at terminal states.
	if inv.Status == model.StatusResolved || inv.Status == model.StatusEscalated {
		out.EvidenceCount = len(out.Evidence)
		return out, nil
	}

	var conclusive *Candidate
	for i, c := range candidates {
		if _, err := model.ParseEvidenceType(string(c.Type)); err != nil {
			return Outcome{}, err
		}
		out.Evidence = append(out.Evidence, model.Evidence{
			EventID:    c.EventID,
			Type:       c.Type,
			Summary:    c.Summary,
			Conclusive: c.Conclusive,
			RecordedAt: today,
		})
		if c.Conclusive && conclusive == nil {
			conclusive = &candidates[i]
		}
	}
	appended := len(candidates) > 0
	if appended {
		t := today
		out.LastEvidenceAt = &t
	}
	out.EvidenceCount = len(out.Evidence)

	switch {
	case conclusive != nil:
		out.Status = model.StatusResolved
		t := today
		out.ResolvedAt = &t
		out.Resolution = conclusive.Resolution
		if out.Resolution == "" {
			out.Resolution = conclusive.Summary
		}

	case inv.Status != model.StatusStale && conflicting(out.Evidence):
		// Supporting and contradicting evidence at once: escalate for
		// human review rather than guess. A stale investigation skips
		// this; fresh evidence only re-opens it.
		out.Status = model.StatusEscalated

	case appended:
		out.Status = model.StatusUpdated

	case isQuiet(inv, today):
		// Staleness is time-driven and applies even with an empty
		// candidate batch.
		if inv.Status != model.StatusStale {
			out.Status = model.StatusStale
		}
	}

	out.Changed = out.Status != inv.Status || appended
	return out, nil
}

// conflicting reports whether the accumulated evidence contains both
// supporting and contradicting entries.
func conflicting(evidence []model.Evidence) bool {
	var supports, contradicts bool
	for _, e := range evidence {
		switch e.Type {
		case model.EvidenceSupports:
			supports = true
		case model.EvidenceContradicts:
			contradicts = true
		}
	}
	return supports && contradicts
}

func isQuiet(inv model.Investigation, today time.Time) bool {
	last := inv.CreatedAt
	if inv.LastEvidenceAt != nil {
		last = *inv.LastEvidenceAt
	}
	return today.Sub(last) > StaleAfter
}
