package postgres

// migrations returns the numbered schema migrations applied by
// sqlbase.MigrationManager, mirroring pkg/eventlog/postgres/migrations.go's
// map-per-version shape.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS backfills (
				id                 TEXT PRIMARY KEY,
				component          TEXT NOT NULL,
				workflow           TEXT NOT NULL,
				start_at           TIMESTAMP WITH TIME ZONE NOT NULL,
				end_at             TIMESTAMP WITH TIME ZONE NOT NULL,
				schedule           JSONB NOT NULL,
				concurrency        INT NOT NULL,
				next_trigger       TIMESTAMP WITH TIME ZONE NOT NULL,
				description        TEXT NOT NULL DEFAULT '',
				reverse            BOOLEAN NOT NULL DEFAULT FALSE,
				all_triggered      BOOLEAN NOT NULL DEFAULT FALSE,
				halted             BOOLEAN NOT NULL DEFAULT FALSE,
				trigger_parameters JSONB,
				created_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS backfills_component_workflow_idx
				ON backfills (component, workflow);
		`,
	}
}
