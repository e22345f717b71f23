package store

import "mproc/internal/sqlitedb"

// FormatVersion tags rows written with blob references instead of inline payloads.
const FormatVersion = 1

// Schema is the metadata database layout.
//
// Version 1 is the original inline layout where icons and attachments were
// embedded as data URLs. Later versions add blob references next to those
// columns so older files still load.
var Schema = sqlitedb.Schema{
	Marker: "tasks",
	Migrations: []sqlitedb.Migration{
		{
			Version:     1,
			Description: "initial schema: tasks and attachments with inline payloads",
			SQL: `
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  due TEXT,
  description TEXT,
  color TEXT,
  completed INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  icon_data_url TEXT,
  icon_name TEXT,
  icon_type TEXT
);

CREATE TABLE IF NOT EXISTS task_attachments (
  task_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT,
  type TEXT,
  data_url TEXT,
  UNIQUE(task_id, position),
  FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(position);
`,
		},
		{
			Version:     2,
			Description: "blob references for icons and attachments",
			SQL: `
ALTER TABLE tasks ADD COLUMN icon_id TEXT;
ALTER TABLE tasks ADD COLUMN format_version INTEGER NOT NULL DEFAULT 0;
ALTER TABLE task_attachments ADD COLUMN blob_id TEXT;
CREATE INDEX IF NOT EXISTS idx_task_attachments_blob ON task_attachments(blob_id);
`,
		},
		{
			Version:     3,
			Description: "settings key/value table",
			SQL: `
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`,
		},
	},
}
