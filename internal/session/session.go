// Package session persists conversations as JSON documents so they can
// be resumed later or browsed with the sessions command.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/agent"
	"quill/internal/llm"
)

// ErrNotFound reports that no saved session matched the query.
var ErrNotFound = errors.New("session not found")

// timestampLayout is the sortable middle section of session filenames,
// e.g. quill_20260823_141503_3fa85f64.json.
const timestampLayout = "20060102_150405"

const gitProbeTimeout = 5 * time.Second

// Metadata describes one saved session. It is stored alongside the
// message list so a session file is self-contained.
type Metadata struct {
	SessionID  string    `json:"session_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	GitCommit  string    `json:"git_commit,omitempty"`
	GitBranch  string    `json:"git_branch,omitempty"`
	Username   string    `json:"username,omitempty"`
	WorkingDir string    `json:"working_directory,omitempty"`

	// Stats and TotalMessages reflect the state at the most recent save.
	Stats         agent.Stats `json:"stats"`
	TotalMessages int         `json:"total_messages"`
}

// Document is the on-disk shape of a session file.
type Document struct {
	Metadata Metadata       `json:"metadata"`
	Messages []*llm.Message `json:"messages"`
}

// Store writes one conversation to a single JSON file, rewritten in
// full after every turn. It is not safe for concurrent use.
type Store struct {
	id    string
	start time.Time
	path  string
	meta  Metadata
}

// NewStore creates a store for a fresh session: a new id, a new file
// under dir, and metadata probed from the environment. The directory is
// created if needed.
func NewStore(dir, prefix, workdir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	s := &Store{
		id:    uuid.New().String(),
		start: time.Now(),
	}
	name := fmt.Sprintf("%s_%s_%s.json", prefix, s.start.Format(timestampLayout), s.id[:8])
	s.path = filepath.Join(dir, name)
	s.meta = Metadata{
		SessionID:  s.id,
		StartTime:  s.start,
		GitCommit:  gitOutput(workdir, "rev-parse", "HEAD"),
		GitBranch:  gitOutput(workdir, "rev-parse", "--abbrev-ref", "HEAD"),
		Username:   currentUsername(),
		WorkingDir: workdir,
	}
	return s, nil
}

// Resume reopens an existing session file for continued writing and
// returns its current content so the caller can restore the
// conversation. The session keeps its id and start time; git state and
// username are probed again, falling back to the stored values.
func Resume(path, workdir string) (*Store, *Document, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	meta := doc.Metadata
	meta.EndTime = time.Time{}
	if meta.SessionID == "" {
		meta.SessionID = uuid.New().String()
	}
	if meta.StartTime.IsZero() {
		meta.StartTime = time.Now()
	}
	if commit := gitOutput(workdir, "rev-parse", "HEAD"); commit != "" {
		meta.GitCommit = commit
	}
	if branch := gitOutput(workdir, "rev-parse", "--abbrev-ref", "HEAD"); branch != "" {
		meta.GitBranch = branch
	}
	meta.Username = currentUsername()
	meta.WorkingDir = workdir

	s := &Store{
		id:    meta.SessionID,
		start: meta.StartTime,
		path:  path,
		meta:  meta,
	}
	return s, doc, nil
}

// ID returns the full session id.
func (s *Store) ID() string { return s.id }

// ShortID returns the 8-character id used in filenames and listings.
func (s *Store) ShortID() string {
	if len(s.id) < 8 {
		return s.id
	}
	return s.id[:8]
}

// Path returns the file this store writes to.
func (s *Store) Path() string { return s.path }

// StartTime returns when the session began.
func (s *Store) StartTime() time.Time { return s.start }

// Save rewrites the session file with the given conversation and stats.
func (s *Store) Save(messages []*llm.Message, stats agent.Stats) error {
	s.meta.EndTime = time.Now()
	s.meta.Stats = stats
	s.meta.TotalMessages = len(messages)

	doc := Document{Metadata: s.meta, Messages: messages}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads and parses a session file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return &doc, nil
}

// FindLatest returns the most recently modified session file under dir.
func FindLatest(dir, prefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no sessions in %s: %w", dir, ErrNotFound)
	}
	return newestFile(matches), nil
}

// FindByID locates a session file by full or partial session id. A full
// UUID is reduced to its first segment before matching; an exact short-id
// match wins over a prefix match, and ties go to the newest file.
func FindByID(dir, prefix, id string) (string, error) {
	short := id
	if i := strings.IndexByte(id, '-'); i >= 0 {
		short = id[:i]
	}

	patterns := []string{
		fmt.Sprintf("%s_*_%s.json", prefix, short),
		fmt.Sprintf("%s_*_%s*.json", prefix, short),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return newestFile(matches), nil
		}
	}
	return "", fmt.Errorf("session %q: %w", id, ErrNotFound)
}

// Summary is one row in a session listing.
type Summary struct {
	Path            string    `json:"path"`
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MessageCount    int       `json:"message_count"`
	LastUserMessage string    `json:"last_user_message"`
}

// List returns summaries of saved sessions, newest first. When workdir
// is non-empty, sessions recorded from a different working directory are
// filtered out; sessions with no recorded directory are kept. Corrupt
// files are skipped. A limit <= 0 means no limit.
func List(dir, prefix string, limit int, workdir string) ([]Summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*.json"))
	if err != nil {
		return nil, err
	}
	sortByModTime(matches)

	resolved := ""
	if workdir != "" {
		if abs, err := filepath.Abs(workdir); err == nil {
			resolved = abs
		}
	}

	var out []Summary
	for _, path := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		doc, err := Load(path)
		if err != nil {
			continue
		}
		if resolved != "" && !matchesWorkdir(doc.Metadata.WorkingDir, resolved) {
			continue
		}

		id := doc.Metadata.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		out = append(out, Summary{
			Path:            path,
			SessionID:       id,
			StartTime:       doc.Metadata.StartTime,
			EndTime:         doc.Metadata.EndTime,
			MessageCount:    len(doc.Messages),
			LastUserMessage: lastUserMessage(doc.Messages),
		})
	}
	return out, nil
}

func matchesWorkdir(recorded, resolved string) bool {
	if recorded == "" {
		return true
	}
	abs, err := filepath.Abs(recorded)
	if err != nil {
		return false
	}
	return abs == resolved
}

func lastUserMessage(messages []*llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llm.RoleUser {
			continue
		}
		content := messages[i].Content
		if r := []rune(content); len(r) > 100 {
			content = string(r[:100])
		}
		return content
	}
	return ""
}

func newestFile(paths []string) string {
	sortByModTime(paths)
	return paths[0]
}

// sortByModTime orders paths newest first. Files that cannot be stated
// sort last.
func sortByModTime(paths []string) {
	mtimes := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			mtimes[p] = info.ModTime()
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return mtimes[paths[i]].After(mtimes[paths[j]])
	})
}

func gitOutput(workdir string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workdir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
