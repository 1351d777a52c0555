package outputs

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dailydream/studio/internal/models"
)

// ---------------------------------------------------------------------------
// Output store
// The output directory is the only place finished artifacts live. The store
// wraps it with listing, safe name resolution, deletion, and age-based
// cleanup; a background sweeper enforces the retention window.
// ---------------------------------------------------------------------------

const sweepInterval = 1 * time.Hour

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Resolve maps a client-supplied filename to a path inside the output
// directory. Names containing separators or traversal are rejected before
// touching the filesystem.
func (s *Store) Resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename is required")
	}
	if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// Stat resolves and stats a stored file.
func (s *Store) Stat(filename string) (string, os.FileInfo, error) {
	path, err := s.Resolve(filename)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("file %q not found", filename)
		}
		return "", nil, fmt.Errorf("failed to stat %q: %w", filename, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("file %q not found", filename)
	}
	return path, info, nil
}

// List returns every stored file, newest first, with an aggregate summary.
func (s *Store) List() ([]models.FileInfo, models.FileSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, models.FileSummary{}, fmt.Errorf("failed to read output directory: %w", err)
	}

	now := time.Now()
	files := make([]models.FileInfo, 0, len(entries))
	var summary models.FileSummary

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		contentType := ContentTypeFor(entry.Name())
		switch {
		case strings.HasPrefix(contentType, "video/"):
			summary.VideoFiles++
		case strings.HasPrefix(contentType, "audio/"):
			summary.AudioFiles++
		default:
			summary.OtherFiles++
		}

		sizeMB := roundMB(info.Size())
		summary.TotalFiles++
		summary.TotalSizeMB += sizeMB

		files = append(files, models.FileInfo{
			Filename:    entry.Name(),
			SizeBytes:   info.Size(),
			SizeMB:      sizeMB,
			ContentType: contentType,
			CreatedAt:   info.ModTime().UTC(),
			AgeHours:    round2(now.Sub(info.ModTime()).Hours()),
			DownloadURL: "/api/download/" + entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	summary.TotalSizeMB = round2(summary.TotalSizeMB)

	return files, summary, nil
}

// Delete removes one stored file by name.
func (s *Store) Delete(filename string) error {
	path, _, err := s.Stat(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %q: %w", filename, err)
	}
	log.Printf("[Outputs] Deleted %s", filename)
	return nil
}

// Cleanup removes every file older than the given age and reports what went.
// A zero (or negative) age removes everything.
func (s *Store) Cleanup(olderThan time.Duration) (models.CleanupSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return models.CleanupSummary{}, fmt.Errorf("failed to read output directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var summary models.CleanupSummary
	var bytesDeleted int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if olderThan > 0 && !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			log.Printf("[Outputs] Failed to delete %s during cleanup: %v", entry.Name(), err)
			continue
		}
		summary.FilesDeleted++
		bytesDeleted += info.Size()
	}

	summary.TotalSizeDeletedMB = roundMB(bytesDeleted)
	if summary.FilesDeleted > 0 {
		log.Printf("[Outputs] Cleanup removed %d files (%.2fMB)", summary.FilesDeleted, summary.TotalSizeDeletedMB)
	}
	return summary, nil
}

// StartSweeper runs Cleanup on a fixed interval until the context ends.
// One immediate sweep happens at startup so a restart still honors the
// retention window.
func (s *Store) StartSweeper(ctx context.Context, retention time.Duration) {
	go func() {
		log.Printf("[Outputs] Retention sweeper started (retention=%v)", retention)
		if _, err := s.Cleanup(retention); err != nil {
			log.Printf("[Outputs] Sweep failed: %v", err)
		}

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[Outputs] Retention sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.Cleanup(retention); err != nil {
					log.Printf("[Outputs] Sweep failed: %v", err)
				}
			}
		}
	}()
}

// ContentTypeFor maps a filename extension to its MIME type.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".srt":
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}

func roundMB(bytes int64) float64 {
	return round2(float64(bytes) / (1024 * 1024))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
