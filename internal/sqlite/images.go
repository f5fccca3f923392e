// This file implements the images index of the catalog.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// imageFilterColumns maps accepted filter keys to columns.
var imageFilterColumns = map[string]string{
	"produce": "produce",
	"state":   "state",
	"source":  "source",
}

const selectImageColumns = "SELECT image_id, produce, state, path, source, sha256, created_at FROM images"

// AddImage indexes a sample and persists images.jsonl. Re-adding a path
// that is already indexed replaces the previous row.
func (b *Backend) AddImage(entry *types.ImageEntry) (string, error) {
	if err := b.AddImages([]*types.ImageEntry{entry}); err != nil {
		return "", err
	}
	return entry.ImageID, nil
}

// AddImages indexes entries in one transaction and rewrites images.jsonl
// once. Either every entry is indexed or none is.
func (b *Backend) AddImages(entries []*types.ImageEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCatalogDetached
	}
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if err := validateImage(entry); err != nil {
			return err
		}
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.ImageID == "" {
			entry.ImageID = generateUUID()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if err := insertImage(tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing images: %w", err)
	}

	if err := b.persistImagesLocked(); err != nil {
		return fmt.Errorf("persisting %s: %w", imagesJSONL, err)
	}
	return nil
}

func validateImage(entry *types.ImageEntry) error {
	if entry == nil || strings.TrimSpace(entry.Produce) == "" {
		return types.ErrInvalidProduce
	}
	if !types.ValidState(entry.State) {
		return types.ErrInvalidState
	}
	if entry.Path == "" {
		return types.ErrInvalidImage
	}
	return nil
}

func insertImage(tx *sql.Tx, entry *types.ImageEntry) error {
	if _, err := tx.Exec("DELETE FROM images WHERE path = ? AND image_id <> ?", entry.Path, entry.ImageID); err != nil {
		return fmt.Errorf("replacing image %s: %w", entry.Path, err)
	}
	_, err := tx.Exec(
		`INSERT INTO images (image_id, produce, state, path, source, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(image_id) DO UPDATE SET
		   produce = excluded.produce, state = excluded.state, path = excluded.path,
		   source = excluded.source, sha256 = excluded.sha256`,
		entry.ImageID, entry.Produce, entry.State, entry.Path, entry.Source, entry.SHA256,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persisting image %s: %w", entry.Path, err)
	}
	return nil
}

// GetImage returns the sample with the given ID.
func (b *Backend) GetImage(id string) (*types.ImageEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	entry, err := hydrateImage(b.db.QueryRow(selectImageColumns+" WHERE image_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting image %s: %w", id, err)
	}
	return entry, nil
}

// ListImages returns the samples matching filter, ordered by produce, state
// and path.
func (b *Backend) ListImages(filter map[string]string) ([]*types.ImageEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}
	return b.listImagesLocked(filter)
}

func (b *Backend) listImagesLocked(filter map[string]string) ([]*types.ImageEntry, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if _, ok := imageFilterColumns[k]; !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidFilter, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := selectImageColumns
	args := make([]any, 0, len(keys))
	if len(keys) > 0 {
		conds := make([]string, len(keys))
		for i, k := range keys {
			conds[i] = imageFilterColumns[k] + " = ?"
			args = append(args, filter[k])
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY produce, state, path"

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var out []*types.ImageEntry
	for rows.Next() {
		entry, err := hydrateImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteImage removes the sample with the given ID.
func (b *Backend) DeleteImage(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCatalogDetached
	}
	if id == "" {
		return types.ErrInvalidID
	}

	res, err := b.db.Exec("DELETE FROM images WHERE image_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting image %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting image %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return b.persistImagesLocked()
}

// Summary counts indexed samples per state per produce. Both states are
// always present in the result.
func (b *Backend) Summary() (types.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.Summary{}, types.ErrCatalogDetached
	}

	summary := types.Summary{
		Structure: make(map[string]map[string]int, len(types.States)),
		Created:   time.Now().UTC().Format("2006-01-02"),
	}
	for _, s := range types.States {
		summary.Structure[s] = make(map[string]int)
	}

	rows, err := b.db.Query("SELECT state, produce, COUNT(*) FROM images GROUP BY state, produce")
	if err != nil {
		return types.Summary{}, fmt.Errorf("summarizing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state, produce string
		var n int
		if err := rows.Scan(&state, &produce, &n); err != nil {
			return types.Summary{}, fmt.Errorf("scanning summary: %w", err)
		}
		if summary.Structure[state] == nil {
			summary.Structure[state] = make(map[string]int)
		}
		summary.Structure[state][produce] = n
		summary.TotalImages += n
	}
	return summary, rows.Err()
}

// persistImagesLocked rewrites images.jsonl from the table.
// The caller must hold b.mu.
func (b *Backend) persistImagesLocked() error {
	entries, err := b.listImagesLocked(nil)
	if err != nil {
		return err
	}
	records := make([]imageJSON, len(entries))
	for i, e := range entries {
		records[i] = imageJSON{
			ImageID:   e.ImageID,
			Produce:   e.Produce,
			State:     e.State,
			Path:      e.Path,
			Source:    e.Source,
			SHA256:    e.SHA256,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	raw, err := marshalRecords(records)
	if err != nil {
		return err
	}
	return writeRecords(filepath.Join(b.config.DataDir, imagesJSONL), raw)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateImage converts a row into an ImageEntry.
func hydrateImage(row rowScanner) (*types.ImageEntry, error) {
	var (
		e         types.ImageEntry
		sha       sql.NullString
		createdAt string
	)
	if err := row.Scan(&e.ImageID, &e.Produce, &e.State, &e.Path, &e.Source, &sha, &createdAt); err != nil {
		return nil, err
	}
	e.SHA256 = sha.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return &e, nil
}
