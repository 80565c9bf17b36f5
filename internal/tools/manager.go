package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
)

// toolSession is the slice of an MCP client session the manager uses.
// *mcp.ClientSession satisfies it.
type toolSession interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Manager holds connections to the configured MCP servers and exposes
// their tools under one flat namespace. Connection failures degrade
// gracefully: a server that cannot be reached is marked Failed and its
// tools are simply absent.
type Manager struct {
	logger log.Logger

	mu       sync.RWMutex
	sessions map[string]toolSession
	states   map[string]*State
	defs     []llm.ToolDefinition
	owners   map[string]string // tool name -> server name
}

// NewManager connects to every configured MCP server and lists its tools.
func NewManager(ctx context.Context, servers []config.MCPServerConfig, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	m := &Manager{
		logger:   logger,
		sessions: make(map[string]toolSession),
		states:   make(map[string]*State),
		owners:   make(map[string]string),
	}

	for _, srv := range servers {
		m.states[srv.Name] = &State{Name: srv.Name, Status: Connecting, LastAttempt: time.Now()}

		session, err := connect(ctx, srv)
		if err != nil {
			m.fail(srv.Name, err)
			logger.Error("mcp server connection failed", "server", srv.Name, "error", err)
			continue
		}
		if err := m.register(ctx, srv.Name, session); err != nil {
			_ = session.Close()
			m.fail(srv.Name, err)
			logger.Error("mcp tool listing failed", "server", srv.Name, "error", err)
			continue
		}
		logger.Info("mcp server connected", "server", srv.Name)
	}
	return m
}

func connect(ctx context.Context, srv config.MCPServerConfig) (toolSession, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "kubesage", Version: "1.0.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.Command(srv.Command, srv.Args...)}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", srv.Name, err)
	}
	return session, nil
}

// register lists the server's tools and folds them into the flat
// namespace. A tool name claimed by an earlier server wins.
func (m *Manager) register(ctx context.Context, name string, session toolSession) error {
	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		return fmt.Errorf("listing tools of %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[name] = session
	for _, tool := range listed.Tools {
		if _, taken := m.owners[tool.Name]; taken {
			m.logger.Warn("duplicate tool name ignored", "tool", tool.Name, "server", name)
			continue
		}
		def := llm.ToolDefinition{Name: tool.Name, Description: tool.Description}
		if tool.InputSchema != nil {
			def.Parameters = schemaToMap(tool.InputSchema)
		}
		m.defs = append(m.defs, def)
		m.owners[tool.Name] = name
	}

	state := m.states[name]
	state.Status = Connected
	state.LastError = nil
	state.SuccessCount++
	return nil
}

// schemaToMap flattens a JSON schema into the generic object form the
// chat providers expect. The SDK exposes tool input schemas as any, so
// the conversion is a plain marshal/unmarshal round-trip.
func schemaToMap(schema any) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Definitions returns the tools of all connected servers.
func (m *Manager) Definitions(context.Context) []llm.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]llm.ToolDefinition(nil), m.defs...)
}

// Call invokes a tool by name with raw JSON arguments and returns the
// concatenated text content of the result.
func (m *Manager) Call(ctx context.Context, name, arguments string) (string, error) {
	m.mu.RLock()
	server, ok := m.owners[name]
	session := m.sessions[server]
	m.mu.RUnlock()
	if !ok || session == nil {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	args := json.RawMessage(arguments)
	if arguments == "" {
		args = json.RawMessage("{}")
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		m.fail(server, err)
		return "", fmt.Errorf("calling tool %q: %w", name, err)
	}

	text := textContent(result)
	if result.IsError {
		m.fail(server, fmt.Errorf("tool %q reported an error", name))
		return "", fmt.Errorf("tool %q failed: %s", name, text)
	}

	m.mu.Lock()
	state := m.states[server]
	state.SuccessCount++
	state.LastAttempt = time.Now()
	m.mu.Unlock()
	return text, nil
}

func textContent(result *mcp.CallToolResult) string {
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}

// States returns a copy of all server connection states.
func (m *Manager) States() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.states))
	for name, state := range m.states {
		out[name] = *state
	}
	return out
}

// ConnectedCount returns the number of currently connected servers.
func (m *Manager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, state := range m.states {
		if state.Status == Connected {
			count++
		}
	}
	return count
}

// Close shuts down all sessions.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, session := range m.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %q: %w", name, err)
		}
	}
	m.sessions = make(map[string]toolSession)
	return firstErr
}

func (m *Manager) fail(server string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[server]; ok {
		state.Status = Failed
		state.LastError = err
		state.FailureCount++
		state.LastAttempt = time.Now()
	}
}
