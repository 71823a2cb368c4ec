package investigation

import (
	"errors"
	"testing"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

var day = 24 * time.Hour

func openInvestigation(lastEvidence time.Time) model.Investigation {
	t := lastEvidence
	return model.Investigation{
		ID:             "inv-1",
		Question:       "will the central bank extend the repo facility",
		Status:         model.StatusOpen,
		Priority:       model.PriorityMedium,
		CreatedAt:      lastEvidence.Add(-10 * day),
		LastEvidenceAt: &t,
	}
}

func TestAdvanceConclusiveEvidenceResolves(t *testing.T) {
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-2 * day))

	out, err := Advance(inv, []Candidate{
		{EventID: "ev-1", Type: model.EvidenceSupports, Summary: "facility extended", Conclusive: true, Resolution: "extended through Q4"},
	}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusResolved {
		t.Fatalf("expected resolved, got %s", out.Status)
	}
	if out.Resolution != "extended through Q4" {
		t.Fatalf("unexpected resolution %q", out.Resolution)
	}
	if out.ResolvedAt == nil || !out.ResolvedAt.Equal(today) {
		t.Fatalf("expected resolved_at = today, got %v", out.ResolvedAt)
	}
}

func TestAdvanceConflictingEvidenceEscalates(t *testing.T) {
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-2 * day))
	inv.Evidence = []model.Evidence{
		{EventID: "ev-0", Type: model.EvidenceSupports, RecordedAt: today.Add(-2 * day)},
	}

	out, err := Advance(inv, []Candidate{
		{EventID: "ev-1", Type: model.EvidenceContradicts, Summary: "facility wound down"},
	}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusEscalated {
		t.Fatalf("expected escalated on conflicting evidence, got %s", out.Status)
	}
	if out.EvidenceCount != 2 {
		t.Fatalf("expected evidence_count 2, got %d", out.EvidenceCount)
	}
}

func TestAdvanceNewEvidenceUpdates(t *testing.T) {
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-2 * day))

	out, err := Advance(inv, []Candidate{
		{EventID: "ev-1", Type: model.EvidenceNeutral, Summary: "related statement"},
	}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusUpdated {
		t.Fatalf("expected updated, got %s", out.Status)
	}
	if out.LastEvidenceAt == nil || !out.LastEvidenceAt.Equal(today) {
		t.Fatalf("expected last_evidence_at = today, got %v", out.LastEvidenceAt)
	}
}

func TestAdvanceQuietInvestigationGoesStale(t *testing.T) {
	today := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-15 * day))

	out, err := Advance(inv, nil, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusStale {
		t.Fatalf("expected stale after 15 quiet days, got %s", out.Status)
	}
}

func TestAdvanceRecentlyTouchedStaysPut(t *testing.T) {
	today := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-5 * day))

	out, err := Advance(inv, nil, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusOpen {
		t.Fatalf("expected open to stay open, got %s", out.Status)
	}
	if out.Changed {
		t.Fatal("no-op advance must not report a change")
	}
}

func TestAdvanceStaleReopensOnEvidence(t *testing.T) {
	today := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-20 * day))
	inv.Status = model.StatusStale

	out, err := Advance(inv, []Candidate{
		{EventID: "ev-9", Type: model.EvidenceSupports, Summary: "fresh signal"},
	}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusUpdated {
		t.Fatalf("expected stale to re-open to updated, got %s", out.Status)
	}
}

func TestAdvanceTerminalStatesUntouched(t *testing.T) {
	today := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for _, status := range []model.InvestigationStatus{model.StatusResolved, model.StatusEscalated} {
		inv := openInvestigation(today.Add(-30 * day))
		inv.Status = status

		out, err := Advance(inv, []Candidate{
			{EventID: "ev-1", Type: model.EvidenceSupports},
		}, today)
		if err != nil {
			t.Fatal(err)
		}
		if out.Status != status {
			t.Fatalf("terminal %s advanced to %s", status, out.Status)
		}
		if out.EvidenceCount != 0 {
			t.Fatalf("terminal %s accepted evidence", status)
		}
	}
}

func TestAdvanceEvidenceCountTracksEvidence(t *testing.T) {
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-1 * day))
	inv.Evidence = []model.Evidence{
		{EventID: "ev-0", Type: model.EvidenceNeutral},
	}
	inv.EvidenceCount = 99 // deliberately wrong; must be recomputed

	out, err := Advance(inv, []Candidate{
		{EventID: "ev-1", Type: model.EvidenceNeutral},
		{EventID: "ev-2", Type: model.EvidenceNeutral},
	}, today)
	if err != nil {
		t.Fatal(err)
	}
	if out.EvidenceCount != 3 {
		t.Fatalf("expected evidence_count 3, got %d", out.EvidenceCount)
	}
}

func TestAdvanceRejectsUnknownEvidenceType(t *testing.T) {
	today := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := openInvestigation(today.Add(-1 * day))

	_, err := Advance(inv, []Candidate{{EventID: "ev-1", Type: "maybe"}}, today)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
