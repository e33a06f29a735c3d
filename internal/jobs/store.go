// Package jobs persists export jobs as one JSON file per job and runs them
// on a fixed worker pool.
package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yieldera/climate-datahub/internal/errs"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Job is the persisted record of one asynchronous export.
type Job struct {
	ID           string            `json:"job_id"`
	Type         string            `json:"job_type"`
	Status       string            `json:"status"`
	Progress     int               `json:"progress"`
	RequestData  json.RawMessage   `json:"request_data"`
	UserID       string            `json:"user_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Error        *string           `json:"error"`
	DownloadURLs map[string]string `json:"download_urls"`
}

func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// Store reads and writes job files under a single directory. A process-wide
// mutex serializes updates; jobs are small and contention is low.
type Store struct {
	dir string
	mu  sync.Mutex
	log *slog.Logger
	now func() time.Time
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, log: log, now: time.Now}, nil
}

func (s *Store) Create(jobType string, request json.RawMessage, userID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// canonicalize the payload so a stored job reads back byte-identical
	var compact bytes.Buffer
	if err := json.Compact(&compact, request); err != nil {
		return nil, fmt.Errorf("request payload invalid: %w", err)
	}
	request = json.RawMessage(compact.Bytes())

	now := s.now().UTC()
	j := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Status:      StatusQueued,
		Progress:    0,
		RequestData: request,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.write(j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// update applies fn to the stored job and persists the result. Terminal
// jobs are immutable.
func (s *Store) update(id string, fn func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if j.Terminal() {
		return j, fmt.Errorf("job %s already %s", id, j.Status)
	}
	fn(j)
	j.UpdatedAt = s.now().UTC()
	if err := s.write(j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) MarkRunning(id string) (*Job, error) {
	return s.update(id, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 10
	})
}

func (s *Store) MarkDone(id string, urls map[string]string) (*Job, error) {
	return s.update(id, func(j *Job) {
		j.Status = StatusDone
		j.Progress = 100
		j.DownloadURLs = urls
	})
}

func (s *Store) MarkError(id string, cause error) (*Job, error) {
	msg := cause.Error()
	return s.update(id, func(j *Job) {
		j.Status = StatusError
		j.Error = &msg
	})
}

// SetProgress bumps the progress counter on a running job.
func (s *Store) SetProgress(id string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if _, err := s.update(id, func(j *Job) { j.Progress = progress }); err != nil {
		s.log.Warn("progress update failed", "job_id", id, "err", err)
	}
}

// List returns jobs newest first, optionally filtered by user, capped at
// limit when limit > 0.
func (s *Store) List(userID string, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		j, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			s.log.Warn("skipping unreadable job file", "file", e.Name(), "err", err)
			continue
		}
		if userID != "" && j.UserID != userID {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CleanupOlderThan removes job files whose last update is older than the
// retention window. Returns the number of files removed.
func (s *Store) CleanupOlderThan(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("job cleanup failed", "err", err)
		return 0
	}
	cutoff := s.now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("job cleanup", "removed", removed)
	}
	return removed
}

func (s *Store) read(id string) (*Job, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.JobNotFound(id)
		}
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("job %s corrupt: %w", id, err)
	}
	return &j, nil
}

func (s *Store) write(j *Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	tmp := s.path(j.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(j.ID))
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
