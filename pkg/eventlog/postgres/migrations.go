package postgres

// migrations returns the numbered schema migrations applied by
// sqlbase.MigrationManager. Grounded on migration-per-version
// map pattern; the schema itself is this domain's, not 's.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS events (
				component   TEXT NOT NULL,
				workflow    TEXT NOT NULL,
				parameter   TEXT NOT NULL,
				counter     BIGINT NOT NULL,
				event_type  TEXT NOT NULL,
				payload     JSONB NOT NULL,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (component, workflow, parameter, counter)
			);

			CREATE TABLE IF NOT EXISTS active_instances (
				component  TEXT NOT NULL,
				workflow   TEXT NOT NULL,
				parameter  TEXT NOT NULL,
				counter    BIGINT NOT NULL,
				trigger_id TEXT NOT NULL,
				PRIMARY KEY (component, workflow, parameter)
			);

			CREATE INDEX IF NOT EXISTS active_instances_trigger_id_idx
				ON active_instances (trigger_id);
		`,
	}
}
