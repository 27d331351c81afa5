package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Pipeline definitions are immutable; the whole document is
			-- stored as JSONB with a few extracted columns for listing.
			CREATE TABLE pipelines (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_pipelines_created_at ON pipelines(created_at);

			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
				revision VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'stopped')),
				current_stage_index INT NOT NULL DEFAULT 0,
				outputs JSONB DEFAULT '{}',
				failure JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				ended_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_pipeline_id ON runs(pipeline_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_pipeline_revision ON runs(pipeline_id, revision);
			CREATE INDEX idx_runs_created_at ON runs(created_at);
		`,
	}
}
