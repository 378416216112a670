package agent

import (
	"fmt"
	"strings"
	"sync"
)

// StaticToolCatalog is the default in-memory ToolCatalog implementation.
type StaticToolCatalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewStaticToolCatalog constructs a catalog seeded with the provided tools.
// Invalid entries are skipped silently.
func NewStaticToolCatalog(tools []Tool) *StaticToolCatalog {
	catalog := &StaticToolCatalog{tools: make(map[string]Tool)}
	for _, tool := range tools {
		_ = catalog.Register(tool)
	}
	return catalog
}

// Register adds a tool to the catalog using a lower-cased key. Duplicate names
// return an error.
func (c *StaticToolCatalog) Register(tool Tool) error {
	key := strings.ToLower(strings.TrimSpace(tool.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	c.tools[key] = tool
	c.order = append(c.order, key)
	return nil
}

// Lookup returns the tool if present.
func (c *StaticToolCatalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tool, ok := c.tools[strings.ToLower(strings.TrimSpace(name))]
	return tool, ok
}

// Names returns the registered tool names in registration order.
func (c *StaticToolCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.order))
	for _, key := range c.order {
		names = append(names, c.tools[key].Name)
	}
	return names
}

// Tools returns a snapshot of the registered tools in registration order.
func (c *StaticToolCatalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools := make([]Tool, 0, len(c.order))
	for _, key := range c.order {
		tools = append(tools, c.tools[key])
	}
	return tools
}
