package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

// ArchiveWriter appends posts to a per-run JSONL file, one object
// per line, flushed per write so partial runs survive a crash.
type ArchiveWriter struct {
	Path string
	mu   sync.Mutex
	f    *os.File
}

// NewArchiveWriter opens a fresh run file named after the user and
// the current time, under dir.
func NewArchiveWriter(dir, username string) (*ArchiveWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_all_tweets_%s.jsonl", username, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &ArchiveWriter{Path: path, f: f}, nil
}

var _ ports.ArchiveSink = (*ArchiveWriter)(nil)

func (w *ArchiveWriter) WritePost(post domain.Post) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *ArchiveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// LatestArchive returns the newest run file under dir, or "" when no
// archive exists yet.
func LatestArchive(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// LoadArchiveTexts reads up to n post texts from a JSONL archive
// file. A missing file yields an empty slice, not an error.
func LoadArchiveTexts(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(texts) >= n {
			break
		}
		var post domain.Post
		if err := json.Unmarshal(scanner.Bytes(), &post); err != nil {
			continue
		}
		texts = append(texts, post.Text)
	}
	return texts
}

// AttemptLog is the append-only JSONL outcome log. The file is never
// truncated or rewritten; appends are serialized under a mutex.
type AttemptLog struct {
	Path string
	mu   sync.Mutex
}

func NewAttemptLog(path string) (*AttemptLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &AttemptLog{Path: path}, nil
}

var _ ports.AttemptLog = (*AttemptLog)(nil)

func (l *AttemptLog) Append(rec domain.AttemptRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// AcceptedTexts returns up to limit final texts of accepted
// attempts, oldest first, for use as style exemplars.
func (l *AttemptLog) AcceptedTexts(limit int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(texts) >= limit {
			break
		}
		var rec domain.AttemptRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Status == domain.StatusAccepted && rec.FinalText != "" {
			texts = append(texts, rec.FinalText)
		}
	}
	return texts, scanner.Err()
}

// ReadAll returns every record in the log, for inspection and tests.
func (l *AttemptLog) ReadAll() ([]domain.AttemptRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var recs []domain.AttemptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec domain.AttemptRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, scanner.Err()
}
