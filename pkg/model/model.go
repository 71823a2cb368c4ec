package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks input rejected at a component boundary. Callers
// must not retry with the same input.
var ErrInvalidInput = errors.New("invalid input")

// DisplaySection buckets an event for presentation.
type DisplaySection string

const (
	SectionKeyEvents DisplaySection = "key_events"
	SectionOtherNews DisplaySection = "other_news"
	SectionArchive   DisplaySection = "archive"
)

// InvestigationStatus is the lifecycle state of an open question.
type InvestigationStatus string

const (
	StatusOpen      InvestigationStatus = "open"
	StatusUpdated   InvestigationStatus = "updated"
	StatusResolved  InvestigationStatus = "resolved"
	StatusStale     InvestigationStatus = "stale"
	StatusEscalated InvestigationStatus = "escalated"
)

// Priority ranks an investigation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// EvidenceType classifies how an event bears on an investigation.
type EvidenceType string

const (
	EvidenceSupports    EvidenceType = "supports"
	EvidenceContradicts EvidenceType = "contradicts"
	EvidenceNeutral     EvidenceType = "neutral"
)

// Confidence is the classifier's stated confidence in a prediction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Direction is the forecast direction for an indicator.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// PredictionStatus is the verification state of a prediction.
type PredictionStatus string

const (
	PredictionPending  PredictionStatus = "pending"
	PredictionActive   PredictionStatus = "active"
	PredictionVerified PredictionStatus = "verified"
	PredictionFailed   PredictionStatus = "failed"
	PredictionExpired  PredictionStatus = "expired"
)

// Event is a classified news item. BaseScore is assigned once by the
// external classifier; the score model derives everything else.
type Event struct {
	ID           string         `json:"id" db:"id"`
	Category     string         `json:"category" db:"category"`
	Region       string         `json:"region" db:"region"`
	BaseScore    int            `json:"base_score" db:"base_score"`
	CurrentScore float64        `json:"current_score" db:"current_score"`
	DecayFactor  float64        `json:"decay_factor" db:"decay_factor"`
	BoostFactor  float64        `json:"boost_factor" db:"boost_factor"`
	Section      DisplaySection `json:"display_section" db:"display_section"`
	PublishedAt  time.Time      `json:"published_at" db:"published_at"`
	// LastBoostAt restarts age-based decay when a follow-up lands.
	LastBoostAt      *time.Time `json:"last_boost_at,omitempty" db:"last_boost_at"`
	Topic            string     `json:"topic,omitempty" db:"topic"`
	LinkedIndicators []string   `json:"linked_indicators" db:"-"`
	IsFollowUp       bool       `json:"is_follow_up" db:"is_follow_up"`
	FollowsUpOn      string     `json:"follows_up_on,omitempty" db:"follows_up_on"`

	// Classifier handoff for investigation matching. EvidenceType is how
	// this event bears on the question named by FollowsUpOn.
	EvidenceType    EvidenceType `json:"evidence_type,omitempty" db:"evidence_type"`
	EvidenceSummary string       `json:"evidence_summary,omitempty" db:"evidence_summary"`
	Conclusive      bool         `json:"conclusive,omitempty" db:"conclusive"`

	LinkedIndicatorsJSON string `json:"-" db:"linked_indicators"`
}

// TopicRecord tracks recurrence of a normalized topic label.
type TopicRecord struct {
	Topic           string    `json:"topic" db:"topic"`
	OccurrenceCount int       `json:"occurrence_count" db:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time `json:"last_seen" db:"last_seen"`
	RelatedEventIDs []string  `json:"related_event_ids" db:"-"`
	IsHot           bool      `json:"is_hot" db:"is_hot"`

	RelatedEventIDsJSON string `json:"-" db:"related_event_ids"`
}

// Evidence is one event's bearing on an investigation.
type Evidence struct {
	EventID    string       `json:"event_id"`
	Type       EvidenceType `json:"evidence_type"`
	Summary    string       `json:"summary"`
	Conclusive bool         `json:"conclusive,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// Investigation is an open question tracked across runs.
type Investigation struct {
	ID             string              `json:"id" db:"id"`
	Question       string              `json:"question" db:"question"`
	Status         InvestigationStatus `json:"status" db:"status"`
	Priority       Priority            `json:"priority" db:"priority"`
	EvidenceCount  int                 `json:"evidence_count" db:"evidence_count"`
	Evidence       []Evidence          `json:"evidence" db:"-"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	LastEvidenceAt *time.Time          `json:"last_evidence_at,omitempty" db:"last_evidence_at"`
	ResolvedAt     *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"`
	Resolution     string              `json:"resolution,omitempty" db:"resolution"`

	EvidenceJSON string `json:"-" db:"evidence"`
}

// Prediction is a falsifiable forecast tied to an indicator. A prediction
// with status "active" is a signal eligible for consensus weighting.
type Prediction struct {
	ID              string           `json:"id" db:"id"`
	SourceEventID   string           `json:"source_event_id" db:"source_event_id"`
	InvestigationID string           `json:"investigation_id,omitempty" db:"investigation_id"`
	Prediction      string           `json:"prediction" db:"prediction"`
	Confidence      Confidence       `json:"confidence" db:"confidence"`
	Direction       Direction        `json:"direction" db:"direction"`
	TargetIndicator string           `json:"target_indicator" db:"target_indicator"`
	TargetRangeLow  *float64         `json:"target_range_low,omitempty" db:"target_range_low"`
	TargetRangeHigh *float64         `json:"target_range_high,omitempty" db:"target_range_high"`
	BaselineValue   float64          `json:"baseline_value" db:"baseline_value"`
	TimeframeDays   int              `json:"timeframe_days,omitempty" db:"timeframe_days"`
	CheckByDate     time.Time        `json:"check_by_date" db:"check_by_date"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	Status          PredictionStatus `json:"status" db:"status"`
	ActualResult    string           `json:"actual_result,omitempty" db:"actual_result"`
	VerifiedAt      *time.Time       `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// IndicatorReading is one observed value for an indicator on a date.
type IndicatorReading struct {
	Indicator  string    `json:"indicator" db:"indicator"`
	Value      float64   `json:"value" db:"value"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// Unresolved reports whether the prediction still awaits verification.
func (p *Prediction) Unresolved() bool {
	return p.Status == PredictionPending || p.Status == PredictionActive
}

// ParseDisplaySection parses a display section string, failing fast on
// unknown values.
func ParseDisplaySection(s string) (DisplaySection, error) {
	switch DisplaySection(s) {
	case SectionKeyEvents, SectionOtherNews, SectionArchive:
		return DisplaySection(s), nil
	}
	return "", fmt.Errorf("%w: display section %q", ErrInvalidInput, s)
}

// ParseInvestigationStatus parses a lifecycle status string.
func ParseInvestigationStatus(s string) (InvestigationStatus, error) {
	switch InvestigationStatus(s) {
	case StatusOpen, StatusUpdated, StatusResolved, StatusStale, StatusEscalated:
		return InvestigationStatus(s), nil
	}
	return "", fmt.Errorf("%w: investigation status %q", ErrInvalidInput, s)
}

// ParsePriority parses a priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("%w: priority %q", ErrInvalidInput, s)
}

// ParseEvidenceType parses an evidence type string.
func ParseEvidenceType(s string) (EvidenceType, error) {
	switch EvidenceType(s) {
	case EvidenceSupports, EvidenceContradicts, EvidenceNeutral:
		return EvidenceType(s), nil
	}
	return "", fmt.Errorf("%w: evidence type %q", ErrInvalidInput, s)
}

// ParseConfidence parses a confidence string.
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s), nil
	}
	return "", fmt.Errorf("%w: confidence %q", ErrInvalidInput, s)
}

// ParseDirection parses a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown, DirectionStable:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: direction %q", ErrInvalidInput, s)
}

// ParsePredictionStatus parses a prediction status string.
func ParsePredictionStatus(s string) (PredictionStatus, error) {
	switch PredictionStatus(s) {
	case PredictionPending, PredictionActive, PredictionVerified, PredictionFailed, PredictionExpired:
		return PredictionStatus(s), nil
	}
	return "", fmt.Errorf("%w: prediction status %q", ErrInvalidInput, s)
}

// ValidateEvent checks the classifier-owned fields of an incoming event.
func ValidateEvent(ev *Event) error {
	if ev.ID == "" {
		return fmt.Errorf("%w: event missing id", ErrInvalidInput)
	}
	if ev.BaseScore < 1 || ev.BaseScore > 100 {
		return fmt.Errorf("%w: event %s base score %d out of range 1-100", ErrInvalidInput, ev.ID, ev.BaseScore)
	}
	if ev.PublishedAt.IsZero() {
		return fmt.Errorf("%w: event %s missing published_at", ErrInvalidInput, ev.ID)
	}
	return nil
}

// ValidatePrediction checks a prediction at the core's input boundary.
func ValidatePrediction(p *Prediction) error {
	if p.ID == "" {
		return fmt.Errorf("%w: prediction missing id", ErrInvalidInput)
	}
	if p.TimeframeDays < 0 {
		return fmt.Errorf("%w: prediction %s negative timeframe %d", ErrInvalidInput, p.ID, p.TimeframeDays)
	}
	if _, err := ParseDirection(string(p.Direction)); err != nil {
		return err
	}
	if _, err := ParseConfidence(string(p.Confidence)); err != nil {
		return err
	}
	return nil
}
