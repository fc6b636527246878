package duckdb

import (
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a reference file.
type FileFingerprint struct {
	Name    string // chromosome served by the file
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(name, path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Name:    name,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// RecordReference stores the fingerprints of the reference files used by a
// run.
func (s *Store) RecordReference(runID string, files []FileFingerprint) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO reference_files
		(run_id, name, path, size, mod_time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.Exec(runID, f.Name, f.Path, f.Size, f.ModTime.UTC()); err != nil {
			return fmt.Errorf("insert reference file %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

// ReferenceFiles returns the fingerprints recorded for a run, ordered by
// chromosome name.
func (s *Store) ReferenceFiles(runID string) ([]FileFingerprint, error) {
	rows, err := s.db.Query(`SELECT name, path, size, mod_time
		FROM reference_files WHERE run_id=? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reference files: %w", err)
	}
	defer rows.Close()

	var files []FileFingerprint
	for rows.Next() {
		var f FileFingerprint
		if err := rows.Scan(&f.Name, &f.Path, &f.Size, &f.ModTime); err != nil {
			return nil, fmt.Errorf("scan reference file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference files: %w", err)
	}
	return files, nil
}

// ReferenceChanged reports whether any recorded file of a run no longer
// matches its on-disk size or modification time.
func (s *Store) ReferenceChanged(runID string) (bool, error) {
	files, err := s.ReferenceFiles(runID)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		cur, err := StatFile(f.Name, f.Path)
		if err != nil {
			return true, nil
		}
		if cur.Size != f.Size || !cur.ModTime.Truncate(time.Microsecond).Equal(f.ModTime.Truncate(time.Microsecond)) {
			return true, nil
		}
	}
	return false, nil
}
