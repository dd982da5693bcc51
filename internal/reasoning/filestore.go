package reasoning

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const mirrorExt = ".jsonl"

// FileStore persists chains as one JSONL file per session: one JSON object
// per line, one line per thought, written in chain order and re-sorted by
// step on load.
//
// A per-session flock guards each file, so concurrent processes sharing a
// mirror directory cannot interleave partial writes. Sessions map to
// distinct files, so distinct sessions never contend.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("mirror directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}

	return &FileStore{dir: dir, logger: logger}, nil
}

// LoadChain reads a session's chain. A missing file yields an empty chain,
// not an error. Lines that fail to parse are skipped with a warning so one
// corrupt line cannot take the whole chain down.
func (f *FileStore) LoadChain(ctx context.Context, sessionID string) (*Chain, error) {
	path := f.path(sessionID)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking mirror file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.Open(path) // #nosec G304 -- path is derived from a sanitized session id
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewChain(), nil
		}
		return nil, fmt.Errorf("opening mirror file: %w", err)
	}
	defer func() { _ = file.Close() }()

	chain := NewChain()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var t Thought
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			f.logger.Warn("skipping malformed mirror line",
				"session_id", sessionID, "error", err)
			continue
		}
		chain.Thoughts = append(chain.Thoughts, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mirror file: %w", err)
	}

	chain.sortBySteps()
	return chain, nil
}

// SaveChain overwrites the session's mirror file with the full chain.
func (f *FileStore) SaveChain(ctx context.Context, sessionID string, chain *Chain) error {
	path := f.path(sessionID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking mirror file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) // #nosec G304
	if err != nil {
		return fmt.Errorf("opening mirror file: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for i := range chain.Thoughts {
		if err := enc.Encode(&chain.Thoughts[i]); err != nil {
			_ = file.Close()
			return fmt.Errorf("encoding thought: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flushing mirror file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing mirror file: %w", err)
	}

	f.logger.Debug("saved chain to mirror",
		"session_id", sessionID, "thoughts", chain.Len())
	return nil
}

// ClearChain removes the session's mirror file. Idempotent.
func (f *FileStore) ClearChain(ctx context.Context, sessionID string) error {
	path := f.path(sessionID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking mirror file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing mirror file: %w", err)
	}
	return nil
}

// Sessions lists session ids that have mirror files. The returned names
// are sanitized file stems, which match the original ids for ids composed
// of [A-Za-z0-9._-].
func (f *FileStore) Sessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("reading mirror directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, mirrorExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, mirrorExt))
	}
	return ids, nil
}

// path maps a session id to its mirror file path.
func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.dir, sanitizeSessionID(sessionID)+mirrorExt)
}

// sanitizeSessionID makes a session id safe to use as a file name.
// Characters outside [A-Za-z0-9._-] are replaced, and any altered id gets
// a short hash suffix so distinct ids cannot collide after sanitizing.
func sanitizeSessionID(id string) string {
	var b strings.Builder
	changed := false
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}

	out := b.String()
	if out == "" || changed || strings.HasPrefix(out, ".") {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		out = strings.TrimPrefix(out, ".")
		if out == "" {
			out = "session"
		}
		out += "-" + hex.EncodeToString(h.Sum(nil))
	}
	return out
}
