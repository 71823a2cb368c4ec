package score

import (
	"math"
	"time"

	"github.com/marketlens/pulse/pkg/model"
)

// Model recomputes an event's importance from its base score, age, and
// follow-up boosts. It holds policy knobs only; all state lives in the
// event snapshot passed to Evaluate.
type Model struct {
	decayRate      float64
	decayFloor     float64
	boostStep      float64
	boostCap       float64
	keyEventCutoff float64
	archiveDays    int
}

// Defaults for the scoring policy.
const (
	DefaultDecayRate      = 0.1
	DefaultDecayFloor     = 0.1
	DefaultBoostStep      = 0.2
	DefaultBoostCap       = 2.0
	DefaultKeyEventCutoff = 70
	DefaultArchiveDays    = 30
)

// NewModel creates a scoring model. Zero-valued knobs fall back to
// defaults.
func NewModel(decayRate, decayFloor, boostStep, boostCap, keyEventCutoff float64, archiveDays int) *Model {
	m := &Model{
		decayRate:      decayRate,
		decayFloor:     decayFloor,
		boostStep:      boostStep,
		boostCap:       boostCap,
		keyEventCutoff: keyEventCutoff,
		archiveDays:    archiveDays,
	}
	if m.decayRate <= 0 {
		m.decayRate = DefaultDecayRate
	}
	if m.decayFloor <= 0 {
		m.decayFloor = DefaultDecayFloor
	}
	if m.boostStep <= 0 {
		m.boostStep = DefaultBoostStep
	}
	if m.boostCap <= 0 {
		m.boostCap = DefaultBoostCap
	}
	if m.keyEventCutoff <= 0 {
		m.keyEventCutoff = DefaultKeyEventCutoff
	}
	if m.archiveDays <= 0 {
		m.archiveDays = DefaultArchiveDays
	}
	return m
}

// Result carries the recomputed numeric fields for one event. The caller
// persists; Evaluate never mutates its input.
type Result struct {
	CurrentScore float64
	DecayFactor  float64
	BoostFactor  float64
	Section      model.DisplaySection
	AgeDays      int
	LastBoostAt  *time.Time
}

// Evaluate recomputes an event's current score at now. boosts are the
// publish times of newer events marking follows_up_on = ev.ID that have
// not yet been credited; each adds one boost step and restarts age-based
// decay from the boost time.
func (m *Model) Evaluate(ev *model.Event, boosts []time.Time, now time.Time) Result {
	boostFactor := ev.BoostFactor
	if boostFactor <= 0 {
		boostFactor = 1.0
	}

	lastBoost := ev.LastBoostAt
	for _, at := range boosts {
		boostFactor = math.Min(boostFactor+m.boostStep, m.boostCap)
		if lastBoost == nil || at.After(*lastBoost) {
			t := at
			lastBoost = &t
		}
	}

	// Decay restarts from the most recent boost; otherwise it runs from
	// publication.
	decayFrom := ev.PublishedAt
	if lastBoost != nil && lastBoost.After(decayFrom) {
		decayFrom = *lastBoost
	}

	decayAge := AgeDays(decayFrom, now)
	decayFactor := math.Exp(-m.decayRate * float64(decayAge))
	if decayFactor < m.decayFloor {
		decayFactor = m.decayFloor
	}

	current := float64(ev.BaseScore) * decayFactor * boostFactor
	if current < 0 {
		current = 0
	}
	if current > 100 {
		current = 100
	}

	ageDays := AgeDays(ev.PublishedAt, now)
	return Result{
		CurrentScore: current,
		DecayFactor:  decayFactor,
		BoostFactor:  boostFactor,
		Section:      m.Classify(current, ageDays),
		AgeDays:      ageDays,
		LastBoostAt:  lastBoost,
	}
}

// Classify maps a current score and age to exactly one display section.
// Age wins: anything older than the archive horizon is archived no matter
// how high it still scores.
func (m *Model) Classify(currentScore float64, ageDays int) model.DisplaySection {
	if ageDays > m.archiveDays {
		return model.SectionArchive
	}
	if currentScore >= m.keyEventCutoff {
		return model.SectionKeyEvents
	}
	return model.SectionOtherNews
}

// AgeDays returns the whole-day age of from at now, clamped to zero so a
// future publish time never produces negative decay.
func AgeDays(from, now time.Time) int {
	d := now.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
