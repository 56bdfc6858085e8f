// ABOUTME: SQLite schema for the memory vault
// ABOUTME: Encrypted columns are BLOB-typed and never covered by the FTS index
package storage

// SchemaVersion is the current vault schema version, recorded in meta.
const SchemaVersion = 1

// Schema contains all SQL statements for vault initialization.
//
// The sessions_fts index covers ONLY the plaintext session title and goal.
// Encrypted fact objects, message contents, and preference values must never
// be indexed; searching them is decrypt-then-filter in application code.
const Schema = `
CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    predicate TEXT NOT NULL,
    object BLOB NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    pii_level INTEGER NOT NULL DEFAULT 0,
    consent_scope TEXT NOT NULL DEFAULT 'default',
    priority REAL NOT NULL DEFAULT 0,
    usage_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    UNIQUE (category, predicate),
    CHECK (pii_level BETWEEN 0 AND 2),
    CHECK (consent_scope IN ('default', 'never_upload'))
);

CREATE INDEX IF NOT EXISTS idx_facts_category ON facts(category);
CREATE INDEX IF NOT EXISTS idx_facts_priority ON facts(priority DESC);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    goal TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content BLOB NOT NULL,
    created_at TEXT NOT NULL,

    CHECK (role IN ('user', 'assistant'))
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

CREATE TABLE IF NOT EXISTS preferences (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    scope TEXT NOT NULL DEFAULT 'explicit',
    updated_at TEXT NOT NULL,

    CHECK (scope IN ('explicit', 'implicit'))
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
    title, goal, content='sessions', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS sessions_fts_insert AFTER INSERT ON sessions BEGIN
    INSERT INTO sessions_fts(rowid, title, goal) VALUES (new.rowid, new.title, new.goal);
END;

CREATE TRIGGER IF NOT EXISTS sessions_fts_delete AFTER DELETE ON sessions BEGIN
    INSERT INTO sessions_fts(sessions_fts, rowid, title, goal) VALUES ('delete', old.rowid, old.title, old.goal);
END;

CREATE TRIGGER IF NOT EXISTS sessions_fts_update AFTER UPDATE ON sessions BEGIN
    INSERT INTO sessions_fts(sessions_fts, rowid, title, goal) VALUES ('delete', old.rowid, old.title, old.goal);
    INSERT INTO sessions_fts(rowid, title, goal) VALUES (new.rowid, new.title, new.goal);
END;
`

// Meta keys written by the engine and its collaborators.
const (
	MetaSchemaVersion     = "schema_version"
	MetaMigrationComplete = "migration_complete"
	MetaMigratedAt        = "migrated_at"
	MetaIdentityID        = "identity_id"
	MetaSelectorVersion   = "selector_version"
	MetaVaultCreatedAt    = "vault_created_at"
	MetaIntegrityOK       = "integrity_ok"
	metaKeyCheck          = "key_check"
)
