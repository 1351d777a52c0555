package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// JobContext owns the per-job scratch directory. Every intermediate file a
// job produces — raw clips, normalized clips, narration audio, staging
// videos — lives under ScratchDir and disappears with it, so a crashed or
// failed job never leaks intermediates into the shared output directory.
type JobContext struct {
	JobID      uuid.UUID
	ScratchDir string
	StartedAt  time.Time
}

// NewJobContext creates the scratch directory for a job under tempDir.
func NewJobContext(tempDir string, jobID uuid.UUID) (*JobContext, error) {
	scratch := filepath.Join(tempDir, "job-"+jobID.String())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &JobContext{
		JobID:      jobID,
		ScratchDir: scratch,
		StartedAt:  time.Now(),
	}, nil
}

// Path returns the scratch-relative location for an intermediate file.
func (j *JobContext) Path(name string) string {
	return filepath.Join(j.ScratchDir, name)
}

// Cleanup removes the scratch directory and everything in it. Called on both
// success and failure paths.
func (j *JobContext) Cleanup() {
	if err := os.RemoveAll(j.ScratchDir); err != nil {
		log.Printf("[Pipeline] Failed to remove scratch dir %s: %v", j.ScratchDir, err)
		return
	}
	log.Printf("[Pipeline] Cleaned up scratch dir for job %s", j.JobID)
}
