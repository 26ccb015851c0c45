package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxAutoBackups is how many automatic backups are retained.
const maxAutoBackups = 5

// BackupInfo describes a database snapshot on disk.
type BackupInfo struct {
	CreatedAt time.Time
	Path      string
	Size      int64
}

// BackupDir returns the directory snapshots are written to.
func (s *SQLiteStorage) BackupDir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "backups")
}

// Backup writes a consistent snapshot of the database using VACUUM INTO and
// returns its path. In-memory databases cannot be backed up.
func (s *SQLiteStorage) Backup(ctx context.Context, tag string) (*BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if s.dbPath == ":memory:" || s.dbPath == "sqlmock" {
		return nil, fmt.Errorf("cannot back up in-memory database")
	}
	if tag == "" {
		tag = "backup"
	}
	if strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return nil, fmt.Errorf("invalid backup tag %q", tag)
	}

	dir, err := filepath.Abs(s.BackupDir())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405.000")
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.db", tag, stamp))
	for n := 1; fileExists(dest); n++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s-%d.db", tag, stamp, n))
	}
	if strings.ContainsAny(dest, `'";`) {
		return nil, fmt.Errorf("invalid backup path %q", dest)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - dest is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	slog.Info("Created database backup", "path", dest, "bytes", stat.Size())
	return &BackupInfo{Path: dest, CreatedAt: stat.ModTime(), Size: stat.Size()}, nil
}

// AutoBackup snapshots the database before a destructive operation and
// prunes older automatic snapshots.
func (s *SQLiteStorage) AutoBackup(ctx context.Context, operation string) (*BackupInfo, error) {
	info, err := s.Backup(ctx, "auto-"+operation)
	if err != nil {
		return nil, fmt.Errorf("failed to create auto-backup: %w", err)
	}

	if err := s.pruneAutoBackups(); err != nil {
		slog.Warn("failed to prune old auto-backups", "error", err)
	}
	return info, nil
}

// ListBackups returns snapshots newest first.
func (s *SQLiteStorage) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.BackupDir())
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(s.BackupDir(), entry.Name()),
			CreatedAt: stat.ModTime(),
			Size:      stat.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func (s *SQLiteStorage) pruneAutoBackups() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}

	kept := 0
	for _, b := range backups {
		if !strings.HasPrefix(filepath.Base(b.Path), "auto-") {
			continue
		}
		kept++
		if kept > maxAutoBackups {
			if err := os.Remove(b.Path); err != nil {
				slog.Debug("failed to delete old auto-backup", "error", err, "path", b.Path)
			}
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
