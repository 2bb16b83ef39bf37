package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// Event operations

// InsertEvent records an event.
func (s *Store) InsertEvent(event *Event) (int64, error) {
	query := `
		INSERT INTO events (ts, action, name, version, detail)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Action,
		event.Name,
		event.Version,
		event.Detail,
	)
	if err != nil {
		return 0, wrapErr(err, "failed to insert %s event for %s", event.Action, event.Name)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event id: %w", err)
	}
	return id, nil
}

// Record implements the packaging recorder.
func (s *Store) Record(action string, id mkp.PackageID, detail string) error {
	_, err := s.InsertEvent(&Event{
		Timestamp: time.Now(),
		Action:    action,
		Name:      string(id.Name),
		Version:   string(id.Version),
		Detail:    detail,
	})
	return err
}

// ListEvents returns the most recent events first. An empty name returns
// the events of all packages; limit <= 0 returns everything.
func (s *Store) ListEvents(name string, limit int) ([]*Event, error) {
	query := `
		SELECT id, ts, action, name, version, detail
		FROM events
		WHERE ? = '' OR name = ?
		ORDER BY id DESC
	`
	args := []any{name, name}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list events")
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		var ts string
		var detail sql.NullString

		err := rows.Scan(
			&event.ID,
			&ts,
			&event.Action,
			&event.Name,
			&event.Version,
			&detail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		event.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of event %d: %w", event.ID, err)
		}
		event.Detail = detail.String

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Manifest cache operations

// CachedManifest returns the cached manifest of path if it was stored for
// the same size and modification time.
func (s *Store) CachedManifest(path string, size, mtimeNS int64) ([]byte, bool, error) {
	query := `
		SELECT manifest_json
		FROM manifest_cache
		WHERE path = ? AND size = ? AND mtime_ns = ?
	`

	var manifest string
	err := s.db.QueryRow(query, path, size, mtimeNS).Scan(&manifest)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr(err, "failed to look up manifest of %s", path)
	}
	return []byte(manifest), true, nil
}

// CacheManifest stores the manifest of path, replacing older entries.
func (s *Store) CacheManifest(path string, size, mtimeNS int64, manifestJSON []byte) error {
	query := `
		INSERT OR REPLACE INTO manifest_cache (path, size, mtime_ns, manifest_json)
		VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, path, size, mtimeNS, string(manifestJSON)); err != nil {
		return wrapErr(err, "failed to cache manifest of %s", path)
	}
	return nil
}

// PruneManifestCache drops entries whose path is not in keep.
func (s *Store) PruneManifestCache(keep []string) (int, error) {
	wanted := make(map[string]bool, len(keep))
	for _, p := range keep {
		wanted[p] = true
	}

	rows, err := s.db.Query("SELECT path FROM manifest_cache")
	if err != nil {
		return 0, wrapErr(err, "failed to list manifest cache")
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan manifest cache row: %w", err)
		}
		if !wanted[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating manifest cache: %w", err)
	}

	for _, p := range stale {
		if _, err := s.db.Exec("DELETE FROM manifest_cache WHERE path = ?", p); err != nil {
			return 0, fmt.Errorf("failed to prune manifest cache entry %s: %w", p, err)
		}
	}
	return len(stale), nil
}
