package store

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id                TEXT PRIMARY KEY,
    category          TEXT NOT NULL DEFAULT '',
    region            TEXT NOT NULL DEFAULT '',
    base_score        INTEGER NOT NULL,
    current_score     REAL NOT NULL DEFAULT 0,
    decay_factor      REAL NOT NULL DEFAULT 1.0,
    boost_factor      REAL NOT NULL DEFAULT 1.0,
    display_section   TEXT NOT NULL DEFAULT 'other_news',
    published_at      DATETIME NOT NULL,
    last_boost_at     DATETIME,
    topic             TEXT NOT NULL DEFAULT '',
    linked_indicators TEXT NOT NULL DEFAULT '[]',
    is_follow_up      BOOLEAN NOT NULL DEFAULT 0,
    follows_up_on     TEXT NOT NULL DEFAULT '',
    evidence_type     TEXT NOT NULL DEFAULT '',
    evidence_summary  TEXT NOT NULL DEFAULT '',
    conclusive        BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_published_at ON events(published_at);
CREATE INDEX IF NOT EXISTS idx_events_section ON events(display_section);
CREATE INDEX IF NOT EXISTS idx_events_topic ON events(topic);

CREATE TABLE IF NOT EXISTS topic_records (
    topic             TEXT PRIMARY KEY,
    occurrence_count  INTEGER NOT NULL DEFAULT 0,
    first_seen        DATETIME NOT NULL,
    last_seen         DATETIME NOT NULL,
    related_event_ids TEXT NOT NULL DEFAULT '[]',
    is_hot            BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS investigations (
    id               TEXT PRIMARY KEY,
    question         TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'open',
    priority         TEXT NOT NULL DEFAULT 'medium',
    evidence_count   INTEGER NOT NULL DEFAULT 0,
    evidence         TEXT NOT NULL DEFAULT '[]',
    created_at       DATETIME NOT NULL,
    last_evidence_at DATETIME,
    resolved_at      DATETIME,
    resolution       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_investigations_status ON investigations(status);

CREATE TABLE IF NOT EXISTS predictions (
    id                TEXT PRIMARY KEY,
    source_event_id   TEXT NOT NULL DEFAULT '',
    investigation_id  TEXT NOT NULL DEFAULT '',
    prediction        TEXT NOT NULL DEFAULT '',
    confidence        TEXT NOT NULL DEFAULT 'medium',
    direction         TEXT NOT NULL,
    target_indicator  TEXT NOT NULL DEFAULT '',
    target_range_low  REAL,
    target_range_high REAL,
    baseline_value    REAL NOT NULL DEFAULT 0,
    timeframe_days    INTEGER NOT NULL DEFAULT 0,
    check_by_date     DATETIME NOT NULL,
    expires_at        DATETIME,
    status            TEXT NOT NULL DEFAULT 'pending',
    actual_result     TEXT NOT NULL DEFAULT '',
    verified_at       DATETIME,
    created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_status ON predictions(status);
CREATE INDEX IF NOT EXISTS idx_predictions_indicator ON predictions(target_indicator);
CREATE INDEX IF NOT EXISTS idx_predictions_check_by ON predictions(check_by_date);

CREATE TABLE IF NOT EXISTS indicator_readings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    indicator   TEXT NOT NULL,
    value       REAL NOT NULL,
    observed_at DATETIME NOT NULL,
    UNIQUE(indicator, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_readings_indicator ON indicator_readings(indicator, observed_at);
`
