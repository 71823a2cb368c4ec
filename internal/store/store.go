package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/marketlens/pulse/pkg/model"
	"github.com/marketlens/pulse/pkg/pipeline"
)

// EventListOpts controls event listing.
type EventListOpts struct {
	Section model.DisplaySection
	Since   time.Time
	Limit   int
}

// PredictionListOpts controls prediction listing.
type PredictionListOpts struct {
	Status    model.PredictionStatus
	Indicator string
	Limit     int
}

// Store is the persistence interface. It is the single writer: the core
// packages only produce mutation intents, which Apply persists.
type Store interface {
	UpsertEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, opts EventListOpts) ([]model.Event, error)

	UpsertInvestigation(ctx context.Context, inv *model.Investigation) error
	ListInvestigations(ctx context.Context, status model.InvestigationStatus) ([]model.Investigation, error)

	UpsertPrediction(ctx context.Context, p *model.Prediction) error
	ListPredictions(ctx context.Context, opts PredictionListOpts) ([]model.Prediction, error)

	AddReading(ctx context.Context, r *model.IndicatorReading) error
	LatestReadings(ctx context.Context) (map[string]float64, error)

	ListTopics(ctx context.Context) ([]model.TopicRecord, error)

	LoadSnapshot(ctx context.Context, today time.Time) (*pipeline.Snapshot, error)
	Apply(ctx context.Context, batch *pipeline.Batch) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertEvent(ctx context.Context, ev *model.Event) error {
	indicatorsJSON, _ := json.Marshal(ev.LinkedIndicators)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, category, region, base_score, current_score, decay_factor, boost_factor,
			display_section, published_at, last_boost_at, topic, linked_indicators,
			is_follow_up, follows_up_on, evidence_type, evidence_summary, conclusive)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_score = excluded.current_score,
			decay_factor = excluded.decay_factor,
			boost_factor = excluded.boost_factor,
			display_section = excluded.display_section,
			last_boost_at = excluded.last_boost_at,
			topic = excluded.topic,
			linked_indicators = excluded.linked_indicators
	`, ev.ID, ev.Category, ev.Region, ev.BaseScore, ev.CurrentScore, ev.DecayFactor, ev.BoostFactor,
		sectionOrDefault(ev.Section), ev.PublishedAt, ev.LastBoostAt, ev.Topic, string(indicatorsJSON),
		ev.IsFollowUp, ev.FollowsUpOn, ev.EvidenceType, ev.EvidenceSummary, ev.Conclusive)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}
	return nil
}

func sectionOrDefault(s model.DisplaySection) model.DisplaySection {
	if s == "" {
		return model.SectionOtherNews
	}
	return s
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	err := s.db.GetContext(ctx, &ev, "SELECT * FROM events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	json.Unmarshal([]byte(ev.LinkedIndicatorsJSON), &ev.LinkedIndicators)
	return &ev, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, opts EventListOpts) ([]model.Event, error) {
	query := "SELECT * FROM events WHERE 1=1"
	var args []any

	if opts.Section != "" {
		query += " AND display_section = ?"
		args = append(args, opts.Section)
	}
	if !opts.Since.IsZero() {
		query += " AND published_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY current_score DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for i := range events {
		json.Unmarshal([]byte(events[i].LinkedIndicatorsJSON), &events[i].LinkedIndicators)
	}
	return events, nil
}

func (s *SQLiteStore) UpsertInvestigation(ctx context.Context, inv *model.Investigation) error {
	evidenceJSON, _ := json.Marshal(inv.Evidence)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investigations (id, question, status, priority, evidence_count, evidence,
			created_at, last_evidence_at, resolved_at, resolution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			evidence_count = excluded.evidence_count,
			evidence = excluded.evidence,
			last_evidence_at = excluded.last_evidence_at,
			resolved_at = excluded.resolved_at,
			resolution = excluded.resolution
	`, inv.ID, inv.Question, inv.Status, inv.Priority, len(inv.Evidence), string(evidenceJSON),
		inv.CreatedAt, inv.LastEvidenceAt, inv.ResolvedAt, inv.Resolution)
	if err != nil {
		return fmt.Errorf("upsert investigation %s: %w", inv.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListInvestigations(ctx context.Context, status model.InvestigationStatus) ([]model.Investigation, error) {
	query := "SELECT * FROM investigations"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	var invs []model.Investigation
	if err := s.db.SelectContext(ctx, &invs, query, args...); err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	for i := range invs {
		json.Unmarshal([]byte(invs[i].EvidenceJSON), &invs[i].Evidence)
	}
	return invs, nil
}

func (s *SQLiteStore) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, source_event_id, investigation_id, prediction, confidence, direction,
			target_indicator, target_range_low, target_range_high, baseline_value, timeframe_days,
			check_by_date, expires_at, status, actual_result, verified_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			actual_result = excluded.actual_result,
			verified_at = excluded.verified_at
	`, p.ID, p.SourceEventID, p.InvestigationID, p.Prediction, p.Confidence, p.Direction,
		p.TargetIndicator, p.TargetRangeLow, p.TargetRangeHigh, p.BaselineValue, p.TimeframeDays,
		p.CheckByDate, p.ExpiresAt, p.Status, p.ActualResult, p.VerifiedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert prediction %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, opts PredictionListOpts) ([]model.Prediction, error) {
	query := "SELECT * FROM predictions WHERE 1=1"
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.Indicator != "" {
		query += " AND target_indicator = ?"
		args = append(args, opts.Indicator)
	}

	query += " ORDER BY check_by_date"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var preds []model.Prediction
	if err := s.db.SelectContext(ctx, &preds, query, args...); err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return preds, nil
}

func (s *SQLiteStore) AddReading(ctx context.Context, r *model.IndicatorReading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indicator_readings (indicator, value, observed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(indicator, observed_at) DO UPDATE SET value = excluded.value
	`, r.Indicator, r.Value, r.ObservedAt)
	if err != nil {
		return fmt.Errorf("add reading %s: %w", r.Indicator, err)
	}
	return nil
}

// LatestReadings returns the most recent observed value per indicator.
func (s *SQLiteStore) LatestReadings(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT indicator, value FROM indicator_readings r1
		WHERE observed_at = (
			SELECT MAX(observed_at) FROM indicator_readings r2 WHERE r2.indicator = r1.indicator
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}
	defer rows.Close()

	readings := make(map[string]float64)
	for rows.Next() {
		var indicator string
		var value float64
		if err := rows.Scan(&indicator, &value); err != nil {
			return nil, err
		}
		readings[indicator] = value
	}
	return readings, rows.Err()
}

func (s *SQLiteStore) ListTopics(ctx context.Context) ([]model.TopicRecord, error) {
	var topics []model.TopicRecord
	err := s.db.SelectContext(ctx, &topics,
		"SELECT * FROM topic_records ORDER BY is_hot DESC, occurrence_count DESC")
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	for i := range topics {
		json.Unmarshal([]byte(topics[i].RelatedEventIDsJSON), &topics[i].RelatedEventIDs)
	}
	return topics, nil
}

// LoadSnapshot reads the full batch input for one evaluation pass.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, today time.Time) (*pipeline.Snapshot, error) {
	events, err := s.ListEvents(ctx, EventListOpts{Limit: 5000})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	invs, err := s.ListInvestigations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	preds, err := s.ListPredictions(ctx, PredictionListOpts{Limit: 5000})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	readings, err := s.LatestReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return &pipeline.Snapshot{
		Events:         events,
		Investigations: invs,
		Predictions:    preds,
		Readings:       readings,
		Today:          today,
	}, nil
}

// Apply persists a batch of mutation intents. Per-entity failures are
// joined and returned but do not stop the rest of the batch.
func (s *SQLiteStore) Apply(ctx context.Context, batch *pipeline.Batch) error {
	var errs []error

	for _, u := range batch.Events {
		_, err := s.db.ExecContext(ctx, `
			UPDATE events SET current_score = ?, decay_factor = ?, boost_factor = ?,
				display_section = ?, last_boost_at = ?
			WHERE id = ?
		`, u.CurrentScore, u.DecayFactor, u.BoostFactor, u.Section, u.LastBoostAt, u.EventID)
		if err != nil {
			errs = append(errs, fmt.Errorf("apply event %s: %w", u.EventID, err))
		}
	}

	for _, t := range batch.Topics {
		idsJSON, _ := json.Marshal(t.RelatedEventIDs)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO topic_records (topic, occurrence_count, first_seen, last_seen, related_event_ids, is_hot)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(topic) DO UPDATE SET
				occurrence_count = excluded.occurrence_count,
				last_seen = excluded.last_seen,
				related_event_ids = excluded.related_event_ids,
				is_hot = excluded.is_hot
		`, t.Topic, t.OccurrenceCount, t.FirstSeen, t.LastSeen, string(idsJSON), t.IsHot)
		if err != nil {
			errs = append(errs, fmt.Errorf("apply topic %s: %w", t.Topic, err))
		}
	}

	for _, u := range batch.Investigations {
		evidenceJSON, _ := json.Marshal(u.Evidence)
		_, err := s.db.ExecContext(ctx, `
			UPDATE investigations SET status = ?, evidence = ?, evidence_count = ?,
				last_evidence_at = ?, resolved_at = ?, resolution = ?
			WHERE id = ?
		`, u.Status, string(evidenceJSON), u.EvidenceCount,
			u.LastEvidenceAt, u.ResolvedAt, u.Resolution, u.InvestigationID)
		if err != nil {
			errs = append(errs, fmt.Errorf("apply investigation %s: %w", u.InvestigationID, err))
		}
	}

	for _, u := range batch.Predictions {
		if !u.Changed {
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			UPDATE predictions SET status = ?, actual_result = ?, verified_at = ?
			WHERE id = ?
		`, u.Status, u.ActualResult, u.VerifiedAt, u.PredictionID)
		if err != nil {
			errs = append(errs, fmt.Errorf("apply prediction %s: %w", u.PredictionID, err))
		}
	}

	return errors.Join(errs...)
}

var _ Store = (*SQLiteStore)(nil)

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
