package blobstore

import "mproc/internal/sqlitedb"

// IndexSchema is the record index layout stored next to the object tree.
var IndexSchema = sqlitedb.Schema{
	Marker: "files",
	Migrations: []sqlitedb.Migration{
		{
			Version:     1,
			Description: "files record index",
			SQL: `
CREATE TABLE IF NOT EXISTS files (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  media_type TEXT NOT NULL,
  sha256 TEXT NOT NULL,
  size_bytes INTEGER NOT NULL CHECK (size_bytes >= 0),
  blob_key TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_blob_key ON files(blob_key);
`,
		},
	},
}
