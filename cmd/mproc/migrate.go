package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mproc/internal/blobstore"
	"mproc/internal/config"
	"mproc/internal/sqlitedb"
	"mproc/internal/store"
	"mproc/internal/tasks"
)

// databaseStatus is the migration state of one SQLite file in the data directory.
type databaseStatus struct {
	Name   string                    `json:"name"`
	Path   string                    `json:"path"`
	Status *sqlitedb.MigrationStatus `json:"status"`
}

type managedDatabase struct {
	name   string
	path   string
	schema sqlitedb.Schema
}

func managedDatabases(cfg *config.Config) []managedDatabase {
	return []managedDatabase{
		{name: "metadata", path: store.Path(cfg.DataDir), schema: store.Schema},
		{name: "blob index", path: blobstore.IndexPath(filepath.Join(cfg.DataDir, blobDirName)), schema: blobstore.IndexSchema},
	}
}

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect schema migrations and move legacy inline files into the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inspect {
				if err := applyMigrations(cmd, cfg); err != nil {
					return err
				}
			}

			statuses := make([]databaseStatus, 0, 2)
			for _, db := range managedDatabases(cfg) {
				status, err := sqlitedb.Inspect(db.path, db.schema)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", db.name, err)
				}
				statuses = append(statuses, databaseStatus{Name: db.name, Path: db.path, Status: status})
			}

			if *jsonOutput {
				return writeJSON(statuses)
			}
			for _, s := range statuses {
				if err := writeMigrationStatus(s); err != nil {
					return err
				}
			}
			if !inspect {
				return writePlain("Migrations applied successfully.\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying anything")

	return cmd
}

// applyMigrations brings both databases to the latest schema, then opens the
// repository so legacy inline payloads are moved into the blob store.
func applyMigrations(cmd *cobra.Command, cfg *config.Config) error {
	if err := ensureNoServer(cmd.Context(), cfg); err != nil {
		return err
	}
	for _, db := range managedDatabases(cfg) {
		handle, err := sqlitedb.Open(db.path, db.schema)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", db.name, err)
		}
		if err := handle.Close(); err != nil {
			return err
		}
	}
	return withRepo(cmd.Context(), cfg, func(*tasks.Repository) error { return nil })
}

func writeMigrationStatus(s databaseStatus) error {
	lines := fmt.Sprintf("%s (%s)\n  current version: %d\n  available version: %d\n",
		s.Name, s.Path, s.Status.CurrentVersion, s.Status.AvailableVersion)
	if len(s.Status.Pending) == 0 {
		lines += "  no pending migrations\n"
	} else {
		lines += fmt.Sprintf("  pending migrations: %d\n", len(s.Status.Pending))
		for _, m := range s.Status.Pending {
			lines += fmt.Sprintf("    %d: %s\n", m.Version, m.Description)
		}
	}
	return writePlain("%s", lines)
}
