package postgres

// migrations returns the numbered schema migrations applied by
// sqlbase.MigrationManager, mirroring pkg/eventlog/postgres/migrations.go's
// map-per-version shape.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				component      TEXT NOT NULL,
				name           TEXT NOT NULL,
				schedule       JSONB NOT NULL,
				configuration  JSONB NOT NULL,
				enabled        BOOLEAN NOT NULL DEFAULT TRUE,
				created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (component, name)
			);

			CREATE TABLE IF NOT EXISTS workflow_trigger_cursors (
				component     TEXT NOT NULL,
				name          TEXT NOT NULL,
				next_trigger  TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (component, name)
			);
		`,
	}
}
