package rotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/systmms/keyrotor/internal/logging"
)

// History records rotation outcomes so operators can audit what happened
// to an account after the process has exited.
type History interface {
	Append(result Result) error
	List(task string, limit int) ([]Record, error)
}

// Record is a stored rotation result plus storage metadata.
type Record struct {
	Result
	ID       string    `json:"id"`
	StoredAt time.Time `json:"stored_at"`
}

// maxRecordsPerTask caps how many records Append keeps per task; the
// oldest beyond the cap are deleted.
const maxRecordsPerTask = 100

// FileHistory keeps one JSON file per rotation run under a directory.
type FileHistory struct {
	dir    string
	logger *logging.Logger
	mu     sync.RWMutex
}

func NewFileHistory(dir string, logger *logging.Logger) (*FileHistory, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileHistory{dir: dir, logger: logger}, nil
}

// Append writes the result as a new record. Secret material never
// appears in a Result, so records are safe to keep on disk.
func (h *FileHistory) Append(result Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	rec := Record{
		Result:   result,
		ID:       fmt.Sprintf("%s_%d", sanitizeFileName(result.Task.Name), now.UnixNano()),
		StoredAt: now,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rotation record: %w", err)
	}

	path := filepath.Join(h.dir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rotation record: %w", err)
	}

	h.logger.Debug("stored rotation record %s", path)
	h.prune(sanitizeFileName(result.Task.Name) + "_")
	return nil
}

// prune drops the oldest records for one task beyond maxRecordsPerTask.
// Caller holds the write lock.
func (h *FileHistory) prune(prefix string) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) <= maxRecordsPerTask {
		return
	}
	// File names embed the creation time, so lexical order is age order.
	sort.Strings(names)
	for _, name := range names[:len(names)-maxRecordsPerTask] {
		if err := os.Remove(filepath.Join(h.dir, name)); err != nil {
			h.logger.Debug("could not prune history file %s: %v", name, err)
		}
	}
}

// List returns records for a task, newest first. An empty task name
// matches every task. Unreadable files are skipped rather than failing
// the whole listing.
func (h *FileHistory) List(task string, limit int) ([]Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			h.logger.Debug("skipping unreadable history file %s: %v", path, err)
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			h.logger.Debug("skipping malformed history file %s: %v", path, err)
			continue
		}
		if task != "" && rec.Task.Name != task {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StoredAt.After(records[j].StoredAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(name)
}
