package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    query                TEXT NOT NULL,
    query_hash           TEXT NOT NULL UNIQUE,
    command              TEXT NOT NULL,
    confidence_score     REAL NOT NULL DEFAULT 0,
    confirmation_count   INTEGER NOT NULL DEFAULT 0,
    rejection_count      INTEGER NOT NULL DEFAULT 0,
    last_used            TEXT NOT NULL,
    created_at           TEXT NOT NULL,
    os_type              TEXT,
    shell_type           TEXT
);

CREATE TABLE IF NOT EXISTS feedback_events (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    query_hash           TEXT NOT NULL,
    command              TEXT NOT NULL,
    action               TEXT NOT NULL,
    timestamp            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_query_hash ON cache_entries(query_hash);
CREATE INDEX IF NOT EXISTS idx_entries_last_used ON cache_entries(last_used);
CREATE INDEX IF NOT EXISTS idx_entries_confidence ON cache_entries(confidence_score);
CREATE INDEX IF NOT EXISTS idx_feedback_query_hash ON feedback_events(query_hash);
CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON feedback_events(timestamp);
`

// requiredTables and requiredEntryColumns are checked after schema creation;
// a store that opens but fails verification is reported as a schema error.
var requiredTables = []string{"cache_entries", "feedback_events"}

var requiredEntryColumns = []string{
	"id", "query", "query_hash", "command", "confidence_score",
	"confirmation_count", "rejection_count", "last_used", "created_at",
}
