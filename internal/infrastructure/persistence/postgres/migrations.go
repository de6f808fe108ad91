package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create sessions table
-- Version: 001

-- Session snapshots: one row per play session, mutated by decisions and
-- ticks, frozen on completion, archived (not deleted) afterwards.
CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    learner_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',

    -- Resource bundle
    currency INTEGER NOT NULL DEFAULT 0,
    time_units INTEGER NOT NULL DEFAULT 0,
    energy INTEGER NOT NULL DEFAULT 0,
    inventory JSONB NOT NULL DEFAULT '{}'::jsonb,

    reputation JSONB NOT NULL DEFAULT '{}'::jsonb,

    -- Business simulation state
    registration_status VARCHAR(20) NOT NULL DEFAULT 'none',
    registration_submitted_at TIMESTAMP WITH TIME ZONE,
    business_name VARCHAR(80),
    cash_balance INTEGER NOT NULL DEFAULT 0,
    business_inventory JSONB NOT NULL DEFAULT '{}'::jsonb,
    loans JSONB NOT NULL DEFAULT '[]'::jsonb,
    tax_obligations JSONB NOT NULL DEFAULT '[]'::jsonb,
    market_exposure DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    last_market_update TIMESTAMP WITH TIME ZONE,

    next_seq BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_status CHECK (status IN ('active', 'completed', 'archived')),
    CONSTRAINT valid_registration CHECK (registration_status IN ('none', 'pending', 'approved', 'rejected')),
    CONSTRAINT valid_currency CHECK (currency >= 0),
    CONSTRAINT valid_energy CHECK (energy >= 0 AND energy <= 100),
    CONSTRAINT valid_cash CHECK (cash_balance >= 0),
    CONSTRAINT valid_exposure CHECK (market_exposure >= 0)
);

CREATE INDEX IF NOT EXISTS idx_sessions_learner ON sessions(learner_id);
CREATE INDEX IF NOT EXISTS idx_sessions_learner_active ON sessions(learner_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_sessions_completed ON sessions(completed_at) WHERE status = 'completed';

-- Archived session payloads, zstd-compressed.
CREATE TABLE IF NOT EXISTS session_archives (
    session_id UUID PRIMARY KEY REFERENCES sessions(id),
    learner_id UUID NOT NULL,
    snapshot BYTEA NOT NULL,
    archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_session_archives_learner ON session_archives(learner_id);
`

const migration001Down = `
DROP TABLE IF EXISTS session_archives;
DROP TABLE IF EXISTS sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
/// MIGRATION 002: CREATE CONSEQUENCES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create consequences table
-- Version: 002

-- Scheduled consequences. applied_at is the at-most-once guard: it is set
-- by a single compare-and-swap UPDATE and never written twice.
CREATE TABLE IF NOT EXISTS consequences (
    id UUID PRIMARY KEY,
    decision_id UUID NOT NULL,
    session_id UUID NOT NULL REFERENCES sessions(id),
    type VARCHAR(20) NOT NULL,
    rule_id VARCHAR(64) NOT NULL,
    effects JSONB NOT NULL DEFAULT '[]'::jsonb,
    scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE,
    seq BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('immediate', 'delayed'))
);

-- The due-sweep touches only unapplied rows; a partial index keeps it
-- cheap as the applied history grows.
CREATE INDEX IF NOT EXISTS idx_consequences_due
    ON consequences(session_id, scheduled_at, seq) WHERE applied_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_consequences_due_global
    ON consequences(scheduled_at) WHERE applied_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_consequences_decision ON consequences(decision_id);
`

const migration002Down = `
DROP TABLE IF EXISTS consequences;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create progression tables
-- Version: 003

-- Per-learner XP counters. xp_today/day_key implement the daily cap;
-- xp_total is only ever incremented.
CREATE TABLE IF NOT EXISTS progression_counters (
    learner_id UUID PRIMARY KEY,
    xp_total INTEGER NOT NULL DEFAULT 0,
    xp_today INTEGER NOT NULL DEFAULT 0,
    day_key CHAR(10) NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp_total CHECK (xp_total >= 0),
    CONSTRAINT valid_xp_today CHECK (xp_today >= 0)
);

-- Lab completions: one row per learner/lab, day_key of the last award.
CREATE TABLE IF NOT EXISTS lab_completions (
    learner_id UUID NOT NULL,
    lab_id VARCHAR(64) NOT NULL,
    day_key CHAR(10) NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, lab_id)
);

-- Mission limiter state, the durable fallback behind the redis copy.
CREATE TABLE IF NOT EXISTS mission_limiter_state (
    learner_id UUID NOT NULL,
    day_key CHAR(10) NOT NULL,
    completed JSONB NOT NULL DEFAULT '[]'::jsonb,
    cooldown_until TIMESTAMP WITH TIME ZONE,
    cooldown_reason TEXT,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, day_key)
);
`

const migration003Down = `
DROP TABLE IF EXISTS mission_limiter_state;
DROP TABLE IF EXISTS lab_completions;
DROP TABLE IF EXISTS progression_counters;
`
