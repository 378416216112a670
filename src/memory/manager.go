package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	maxEntriesPerAgent = 200
	defaultPromptLimit = 15
)

// Entry is one remembered fact about or for an agent.
type Entry struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Source     string    `json:"source"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager stores per-agent memories as JSON files under a data directory.
type Manager struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	agents map[string][]Entry
}

// NewManager creates a manager rooted at dir. Existing files are loaded
// lazily on first access per agent.
func NewManager(dir string, logger zerolog.Logger) *Manager {
	return &Manager{
		dir:    dir,
		logger: logger.With().Str("component", "memory").Logger(),
		agents: make(map[string][]Entry),
	}
}

// Add stores a new memory for an agent. Importance is clamped to 1..5.
// When the agent is at capacity the least important, oldest entry is pruned.
func (m *Manager) Add(agentID, content, category, source string, importance int) (Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Entry{}, errors.New("memory content is empty")
	}
	if importance < 1 {
		importance = 1
	}
	if importance > 5 {
		importance = 5
	}
	if category == "" {
		category = "general"
	}

	entry := Entry{
		ID:         uuid.NewString(),
		Content:    content,
		Category:   category,
		Source:     source,
		Importance: importance,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.loadLocked(agentID)
	entries = append(entries, entry)
	for len(entries) > maxEntriesPerAgent {
		entries = pruneOne(entries)
	}
	m.agents[agentID] = entries

	if err := m.saveLocked(agentID); err != nil {
		return Entry{}, err
	}
	m.logger.Debug().Str("agent", agentID).Str("category", category).Msg("memory stored")
	return entry, nil
}

// List returns all memories for an agent, newest first.
func (m *Manager) List(agentID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.loadLocked(agentID)
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes one memory by id. It reports whether the id was found.
func (m *Manager) Delete(agentID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.loadLocked(agentID)
	for i, e := range entries {
		if e.ID == id {
			m.agents[agentID] = append(entries[:i], entries[i+1:]...)
			return true, m.saveLocked(agentID)
		}
	}
	return false, nil
}

// Search returns memories whose content or category contains the query,
// case-insensitively.
func (m *Manager) Search(agentID, query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.loadLocked(agentID) {
		if strings.Contains(strings.ToLower(e.Content), query) ||
			strings.Contains(strings.ToLower(e.Category), query) {
			out = append(out, e)
		}
	}
	return out
}

// PromptBlock renders the agent's top memories for system-prompt injection.
// Entries are ranked by importance, then recency. An empty string means the
// agent has no memories.
func (m *Manager) PromptBlock(agentID string, limit int) string {
	if limit <= 0 {
		limit = defaultPromptLimit
	}

	m.mu.Lock()
	entries := append([]Entry(nil), m.loadLocked(agentID)...)
	m.mu.Unlock()

	if len(entries) == 0 {
		return ""
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Importance != entries[j].Importance {
			return entries[i].Importance > entries[j].Importance
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	var b strings.Builder
	b.WriteString("Things you remember about this user:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s\n", e.Category, e.Content)
	}
	return b.String()
}

// pruneOne drops the lowest-importance entry, breaking ties by age.
func pruneOne(entries []Entry) []Entry {
	victim := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].Importance < entries[victim].Importance ||
			(entries[i].Importance == entries[victim].Importance &&
				entries[i].CreatedAt.Before(entries[victim].CreatedAt)) {
			victim = i
		}
	}
	return append(entries[:victim], entries[victim+1:]...)
}

func (m *Manager) path(agentID string) string {
	return filepath.Join(m.dir, agentID+".json")
}

// loadLocked returns the cached entries for an agent, reading the file on
// first access. Caller holds m.mu.
func (m *Manager) loadLocked(agentID string) []Entry {
	if entries, ok := m.agents[agentID]; ok {
		return entries
	}

	var entries []Entry
	data, err := os.ReadFile(m.path(agentID))
	if err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			m.logger.Warn().Err(err).Str("agent", agentID).Msg("corrupt memory file, starting fresh")
			entries = nil
		}
	}
	m.agents[agentID] = entries
	return entries
}

func (m *Manager) saveLocked(agentID string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrap(err, "create memory dir")
	}
	data, err := json.MarshalIndent(m.agents[agentID], "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal memories")
	}
	tmp := m.path(agentID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write memories")
	}
	return errors.Wrap(os.Rename(tmp, m.path(agentID)), "rename memories")
}
