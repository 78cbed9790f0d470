package container

const pragmas = `
PRAGMA journal_mode = MEMORY;
PRAGMA synchronous = OFF;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;
`

const schema = `
-- Container metadata: license, source, label, uuid, created.at
CREATE TABLE IF NOT EXISTS tags (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Stored content, one row per distinct (content type, data) pair
CREATE TABLE IF NOT EXISTS blobs (
    blob_id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash TEXT NOT NULL UNIQUE,
    content_type TEXT NOT NULL,
    compression TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    data BLOB NOT NULL
);

-- Keys recorded while building, in insertion order
CREATE TABLE IF NOT EXISTS staged_refs (
    key TEXT NOT NULL,
    fragment TEXT NOT NULL DEFAULT '',
    blob_id INTEGER NOT NULL,
    FOREIGN KEY (blob_id) REFERENCES blobs(blob_id)
);

-- Sorted key index written by Finalize
CREATE TABLE IF NOT EXISTS refs (
    ref_id INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    fragment TEXT NOT NULL DEFAULT '',
    blob_id INTEGER NOT NULL,
    FOREIGN KEY (blob_id) REFERENCES blobs(blob_id)
);
`

const finalizeRefs = `
INSERT INTO refs (key, fragment, blob_id)
SELECT key, fragment, blob_id FROM staged_refs
ORDER BY key, fragment, rowid;

DROP TABLE staged_refs;

CREATE INDEX IF NOT EXISTS idx_refs_key ON refs(key);
`
