package mcp

import (
	"context"
	"fmt"
	"sync"

	"quill/internal/config"
	"quill/internal/tool"
)

// Manager owns the MCP server connections. Each configured server is
// spawned as a subprocess, its tools are wrapped in adapters and
// registered under namespaced names, and the whole set is torn down
// together on Close.
type Manager struct {
	clients  map[string]*Client
	registry *tool.Registry
	mu       sync.RWMutex
}

func NewManager(registry *tool.Registry) *Manager {
	return &Manager{
		clients:  make(map[string]*Client),
		registry: registry,
	}
}

// Initialize connects all enabled servers from the config concurrently.
// A partial failure still returns an error naming the failed servers,
// but the connected ones stay registered and usable.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	if len(cfg.Servers) == 0 {
		return nil
	}

	names := make(map[string]bool)
	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}
		if names[serverCfg.Name] {
			return fmt.Errorf("duplicate server name: %s", serverCfg.Name)
		}
		names[serverCfg.Name] = true
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(cfg.Servers))
	okChan := make(chan string, len(cfg.Servers))

	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}

		wg.Add(1)
		go func(cfg config.MCPServerConfig) {
			defer wg.Done()
			if err := m.connect(ctx, cfg); err != nil {
				errChan <- fmt.Errorf("server %s: %w", cfg.Name, err)
			} else {
				okChan <- cfg.Name
			}
		}(serverCfg)
	}

	wg.Wait()
	close(errChan)
	close(okChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	connected := 0
	for range okChan {
		connected++
	}

	if len(errs) > 0 && connected == 0 {
		return fmt.Errorf("all MCP servers failed to initialize: %v", errs)
	}
	if len(errs) > 0 {
		return fmt.Errorf("some MCP servers failed (loaded %d/%d): %v", connected, connected+len(errs), errs)
	}
	return nil
}

// connect spawns one server and registers its tools. The subprocess
// handshake runs outside the lock so servers start in parallel.
func (m *Manager) connect(ctx context.Context, serverCfg config.MCPServerConfig) error {
	env := config.ExpandEnvMap(serverCfg.Env)

	client, err := NewClient(ctx, serverCfg.Name, serverCfg.Command, serverCfg.Args, env)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mcpTool := range client.Tools() {
		adapter := NewToolAdapter(client, mcpTool)
		if err := m.registry.Register(adapter); err != nil {
			client.Close()
			return fmt.Errorf("failed to register tool %s: %w", adapter.Name(), err)
		}
	}

	m.clients[serverCfg.Name] = client
	return nil
}

// Close shuts down all server connections concurrently.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(m.clients))

	for name, client := range m.clients {
		wg.Add(1)
		go func(name string, c *Client) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				errChan <- fmt.Errorf("server %s: %w", name, err)
			}
		}(name, client)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	m.clients = make(map[string]*Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing servers: %v", errs)
	}
	return nil
}

// Servers returns the names of the connected servers.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	return names
}
