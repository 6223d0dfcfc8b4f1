// Package storage lays out per-request job directories under the upload
// root and removes them once they age past the retention window.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

// ErrNotFound is returned when a job file does not exist or the name
// escapes its job directory.
var ErrNotFound = errors.New("file not found")

// Store owns the upload root.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates the upload root if it does not exist.
func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve upload dir %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create upload dir %s", abs)
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute upload root.
func (s *Store) Root() string {
	return s.root
}

// JobDir is the directory of a single caption job.
type JobDir struct {
	ID   string
	Path string
}

// NewJob allocates a fresh uniquely named job directory.
func (s *Store) NewJob() (*JobDir, error) {
	id := uuid.New().String()
	path := filepath.Join(s.root, id)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create job dir %s", path)
	}
	return &JobDir{ID: id, Path: path}, nil
}

// InputPath returns the path the upload is stored at. ext carries the dot.
func (j *JobDir) InputPath(ext string) string {
	return filepath.Join(j.Path, config.InputBaseName+strings.ToLower(ext))
}

// ResultPath returns the path of the rendered video.
func (j *JobDir) ResultPath(ext string) string {
	return filepath.Join(j.Path, config.ResultBaseName+ext)
}

// Remove deletes the job directory and everything in it.
func (j *JobDir) Remove() error {
	return errors.WithStack(os.RemoveAll(j.Path))
}

// Resolve maps a job id and file name to a path inside that job directory.
func (s *Store) Resolve(id, name string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}

	path := filepath.Join(s.root, id, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// FreeBytes reports the free space of the filesystem holding the upload root.
func (s *Store) FreeBytes() (uint64, error) {
	usage, err := disk.Usage(s.root)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read disk usage")
	}
	return usage.Free, nil
}

// Sweep removes job directories last modified before now - olderThan and
// returns how many were removed.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list upload dir")
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			s.logger.Warn("failed to remove expired job", slog.String("job_id", entry.Name()), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := s.logger.With(slog.String("component", "sweeper"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(retention)
			if err != nil {
				logger.Warn("sweep failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Info("removed expired jobs", slog.Int("count", removed))
			}
		}
	}
}
