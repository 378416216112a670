package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// ProviderInfo describes one supported model backend.
type ProviderInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiresKey  bool     `json:"requires_key"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// Providers is the static catalog of supported backends.
var Providers = map[string]ProviderInfo{
	"ollama": {
		Name:         "Ollama (Local)",
		Description:  "Local models via Ollama, no API key needed",
		RequiresKey:  false,
		Models:       []string{"qwen2.5:14b", "llama3.1:8b", "mistral:7b", "gemma2:9b"},
		DefaultModel: "qwen2.5:14b",
	},
	"anthropic": {
		Name:         "Anthropic Claude",
		Description:  "Claude models via the Anthropic API",
		RequiresKey:  true,
		Models:       []string{"claude-sonnet-4-5-20250929", "claude-haiku-4-5-20251001"},
		DefaultModel: "claude-sonnet-4-5-20250929",
	},
	"openai": {
		Name:         "OpenAI",
		Description:  "GPT-4o and variants via the OpenAI API",
		RequiresKey:  true,
		Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
		DefaultModel: "gpt-4o",
	},
	"google": {
		Name:         "Google Gemini",
		Description:  "Gemini models via the Google AI API",
		RequiresKey:  true,
		Models:       []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-2.0-flash"},
		DefaultModel: "gemini-1.5-flash",
	},
}

// ProviderSettings is the per-provider slice of the persisted config.
type ProviderSettings struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// LLMConfig is the persisted routing configuration. API keys live here, so
// the file must never be committed.
type LLMConfig struct {
	DefaultProvider string                      `json:"default_provider"`
	DefaultModel    string                      `json:"default_model"`
	FailoverOrder   []string                    `json:"failover_order"`
	Providers       map[string]ProviderSettings `json:"providers"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "ollama",
		DefaultModel:    "qwen2.5:14b",
		FailoverOrder:   []string{"ollama"},
		Providers: map[string]ProviderSettings{
			"ollama":    {Enabled: true, BaseURL: "http://localhost:11434", Model: "qwen2.5:14b"},
			"anthropic": {Model: "claude-sonnet-4-5-20250929"},
			"openai":    {Model: "gpt-4o"},
			"google":    {Model: "gemini-1.5-flash"},
		},
	}
}

// LLMManager loads and persists the LLM config file.
type LLMManager struct {
	path string

	mu  sync.RWMutex
	cfg LLMConfig
}

// NewLLMManager loads the config at path, merging saved values over the
// defaults so new providers appear automatically.
func NewLLMManager(path string) *LLMManager {
	m := &LLMManager{path: path, cfg: defaultLLMConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}

	var saved LLMConfig
	if err := json.Unmarshal(data, &saved); err != nil {
		return m
	}
	if saved.DefaultProvider != "" {
		m.cfg.DefaultProvider = saved.DefaultProvider
	}
	if saved.DefaultModel != "" {
		m.cfg.DefaultModel = saved.DefaultModel
	}
	if len(saved.FailoverOrder) > 0 {
		m.cfg.FailoverOrder = saved.FailoverOrder
	}
	for name, settings := range saved.Providers {
		m.cfg.Providers[name] = settings
	}
	return m
}

// Config returns a copy of the current configuration.
func (m *LLMManager) Config() LLMConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.cfg
	out.FailoverOrder = append([]string(nil), m.cfg.FailoverOrder...)
	out.Providers = make(map[string]ProviderSettings, len(m.cfg.Providers))
	for name, settings := range m.cfg.Providers {
		out.Providers[name] = settings
	}
	return out
}

// DefaultProvider returns the configured default provider name.
func (m *LLMManager) DefaultProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.DefaultProvider
}

// FailoverOrder returns the configured failover provider names.
func (m *LLMManager) FailoverOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.cfg.FailoverOrder...)
}

// SetDefault updates the default provider and model.
func (m *LLMManager) SetDefault(provider, model string) error {
	if _, ok := Providers[provider]; !ok {
		return errors.Errorf("unknown provider: %s", provider)
	}
	m.mu.Lock()
	m.cfg.DefaultProvider = provider
	if model != "" {
		m.cfg.DefaultModel = model
	}
	m.mu.Unlock()
	return m.Save()
}

// SetProvider replaces one provider's settings.
func (m *LLMManager) SetProvider(name string, settings ProviderSettings) error {
	if _, ok := Providers[name]; !ok {
		return errors.Errorf("unknown provider: %s", name)
	}
	m.mu.Lock()
	m.cfg.Providers[name] = settings
	m.mu.Unlock()
	return m.Save()
}

// SetFailoverOrder replaces the failover list.
func (m *LLMManager) SetFailoverOrder(order []string) error {
	for _, name := range order {
		if _, ok := Providers[name]; !ok {
			return errors.Errorf("unknown provider: %s", name)
		}
	}
	m.mu.Lock()
	m.cfg.FailoverOrder = append([]string(nil), order...)
	m.mu.Unlock()
	return m.Save()
}

// Save writes the config atomically.
func (m *LLMManager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal llm config")
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write llm config")
	}
	return errors.Wrap(os.Rename(tmp, m.path), "rename llm config")
}
