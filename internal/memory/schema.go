package memory

// SchemaVersion is the current supported schema version. Open refuses
// to run against a database whose recorded version exceeds this, so old
// binaries never corrupt newer stores. Migrations are additive only:
// the store persists across restarts with no version negotiation.
const SchemaVersion = 1

// schemaV1 creates the initial schema: the append-only experiences log
// plus the mutable preference, pattern, and association tables.
const schemaV1 = `
-- Experiences: append-only log of every interaction. Rows are immutable
-- once written; only PurgeAll removes them.
CREATE TABLE IF NOT EXISTS experiences (
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  raw_text      TEXT NOT NULL,
  signature     TEXT NOT NULL,
  ts            INTEGER NOT NULL,          -- unix millis, monotonic per process
  success       INTEGER NOT NULL,
  latency_ms    INTEGER NOT NULL DEFAULT 0,
  session_seq   INTEGER NOT NULL,          -- monotonically increasing session counter
  session_key   TEXT NOT NULL,             -- opaque session handle
  context_json  TEXT
);

CREATE INDEX IF NOT EXISTS idx_experiences_ts ON experiences(ts);
CREATE INDEX IF NOT EXISTS idx_experiences_sig_ts ON experiences(signature, ts);
CREATE INDEX IF NOT EXISTS idx_experiences_session ON experiences(session_seq, ts);

-- Preferences: at most one active fact per key.
CREATE TABLE IF NOT EXISTS preferences (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL,
  confidence      REAL NOT NULL,
  source          TEXT NOT NULL,           -- 'explicit' or 'inferred'
  last_reinforced INTEGER NOT NULL,        -- unix millis
  observations    INTEGER NOT NULL DEFAULT 1,
  created_at      INTEGER NOT NULL
);

-- Shadow candidates: competing values accumulating evidence against an
-- incumbent fact. Promoted into preferences when they overtake it.
CREATE TABLE IF NOT EXISTS preference_candidates (
  key             TEXT NOT NULL,
  value           TEXT NOT NULL,
  confidence      REAL NOT NULL,
  source          TEXT NOT NULL,
  last_reinforced INTEGER NOT NULL,
  observations    INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY(key, value)
);

-- Patterns: derived cache, fully replaced by each recompute pass.
CREATE TABLE IF NOT EXISTS patterns (
  kind          TEXT NOT NULL,             -- 'temporal' | 'sequential' | 'frequency'
  signature     TEXT NOT NULL,             -- command signature (antecedent for sequential)
  consequent    TEXT NOT NULL DEFAULT '',  -- sequential only
  hour_bucket   INTEGER NOT NULL DEFAULT -1,
  weekday       INTEGER NOT NULL DEFAULT -1,
  support       INTEGER NOT NULL,
  recent_count  INTEGER NOT NULL DEFAULT 0,
  success_rate  REAL NOT NULL DEFAULT 0,
  confidence    REAL NOT NULL DEFAULT 0,
  last_seen     INTEGER NOT NULL,
  PRIMARY KEY(kind, signature, consequent, hour_bucket, weekday)
);

CREATE INDEX IF NOT EXISTS idx_patterns_kind ON patterns(kind, confidence DESC, support DESC);

-- Command associations: directed A->B adjacency counts, also derived.
CREATE TABLE IF NOT EXISTS command_associations (
  antecedent   TEXT NOT NULL,
  consequent   TEXT NOT NULL,
  count        INTEGER NOT NULL,
  mean_gap_ms  REAL NOT NULL DEFAULT 0,
  last_seen    INTEGER NOT NULL,
  PRIMARY KEY(antecedent, consequent)
);

CREATE INDEX IF NOT EXISTS idx_associations_antecedent ON command_associations(antecedent, count DESC);

-- Schema migrations tracking
CREATE TABLE IF NOT EXISTS schema_migrations (
  version    INTEGER PRIMARY KEY,
  applied_ts INTEGER NOT NULL
);
`

// AllTables lists every table the schema creates, for validation.
var AllTables = []string{
	"experiences",
	"preferences",
	"preference_candidates",
	"patterns",
	"command_associations",
	"schema_migrations",
}

// AllIndexes lists every index the schema creates, for validation.
var AllIndexes = []string{
	"idx_experiences_ts",
	"idx_experiences_sig_ts",
	"idx_experiences_session",
	"idx_patterns_kind",
	"idx_associations_antecedent",
}
