// This file implements JSONL loading for startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// jsonlTableMapping maps JSONL filenames to their SQLite tables and column lists.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
}{
	{imagesJSONL, "images", []string{"image_id", "produce", "state", "path", "source", "sha256", "created_at"}},
	{jobsJSONL, "jobs", []string{"job_id", "training_file_id", "base_model", "status", "fine_tuned_model", "trained_tokens", "error", "created_at", "finished_at"}},
}

// loadAllJSONL reads each JSONL file from dataDir and inserts records into the
// corresponding SQLite tables. Loading is transactional: all files load or
// the database remains empty. Malformed lines and unknown fields are ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into a SQLite table. Only the
// listed columns are extracted; records violating constraints are skipped.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = obj[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}
