// Package sqlite implements the SQLite backend for the freshset catalog.
package sqlite

// Schema DDL for all tables.
const (
	createImages = `CREATE TABLE images (
    image_id TEXT PRIMARY KEY,
    produce TEXT NOT NULL,
    state TEXT NOT NULL,
    path TEXT NOT NULL,
    source TEXT NOT NULL,
    sha256 TEXT,
    created_at TEXT NOT NULL
);`

	createJobs = `CREATE TABLE jobs (
    job_id TEXT PRIMARY KEY,
    training_file_id TEXT NOT NULL,
    base_model TEXT NOT NULL,
    status TEXT NOT NULL,
    fine_tuned_model TEXT,
    trained_tokens INTEGER,
    error TEXT,
    created_at TEXT NOT NULL,
    finished_at TEXT
);`
)

// Index DDL for common queries.
const (
	idxImagesProduceState = `CREATE INDEX idx_images_produce_state ON images(produce, state);`
	idxImagesSource       = `CREATE INDEX idx_images_source ON images(source);`
	idxImagesPath         = `CREATE UNIQUE INDEX idx_images_path ON images(path);`
	idxJobsStatus         = `CREATE INDEX idx_jobs_status ON jobs(status);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createImages,
	createJobs,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxImagesProduceState,
	idxImagesSource,
	idxImagesPath,
	idxJobsStatus,
}
