package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/entrhq/kustodash/pkg/logging"
)

// PlaywrightServer is the default server name the browser layer invokes.
const PlaywrightServer = "playwright"

// Client is an Invoker backed by MCP servers spawned as subprocesses with
// stdio transport. Sessions are established lazily on first invocation of
// a server and reused for the life of the client.
type Client struct {
	mu       sync.Mutex
	commands map[string][]string
	sessions map[string]*mcp.ClientSession
	impl     *mcp.Implementation
	logger   *logging.Logger
}

// NewClient returns a client with the Playwright browser server
// pre-registered (`npx @playwright/mcp@latest`).
func NewClient(logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		commands: make(map[string][]string),
		sessions: make(map[string]*mcp.ClientSession),
		impl: &mcp.Implementation{
			Name:    "kustodash",
			Version: "1.0.0",
		},
		logger: logger,
	}
	c.RegisterServer(PlaywrightServer, []string{"npx", "@playwright/mcp@latest"})
	return c
}

// RegisterServer maps a server name to the command line that starts it.
func (c *Client) RegisterServer(name string, argv []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[name] = argv
}

// Invoke calls one tool on the named server. The result is the decoded
// JSON object from the tool's text content; non-JSON text is wrapped as
// {"raw": text}. Tool-level errors and transport errors both surface as
// ordinary errors for the classifier.
func (c *Client) Invoke(ctx context.Context, server, tool string, params map[string]any) (map[string]any, error) {
	if tool == "" {
		return nil, &ValidationError{Msg: "tool name is required"}
	}

	session, err := c.session(ctx, server)
	if err != nil {
		return nil, err
	}

	c.logger.Debugf("invoking %s/%s", server, tool)
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: params,
	})
	if err != nil {
		return nil, fmt.Errorf("call %s/%s: %w", server, tool, err)
	}
	if err := result.GetError(); err != nil {
		return nil, fmt.Errorf("tool %s/%s: %w", server, tool, err)
	}

	return decodeResult(result), nil
}

// Close shuts down every live server session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
		delete(c.sessions, name)
	}
	return firstErr
}

// session returns the live session for a server, connecting on first use.
func (c *Client) session(ctx context.Context, server string) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session, ok := c.sessions[server]; ok {
		return session, nil
	}

	argv, ok := c.commands[server]
	if !ok || len(argv) == 0 {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown tool server %q", server)}
	}

	c.logger.Infof("starting tool server %q: %v", server, argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(c.impl, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", server, err)
	}

	c.sessions[server] = session
	return session, nil
}

// decodeResult flattens a CallToolResult to a plain map. Structured
// content wins; otherwise the first text block is JSON-decoded, falling
// back to {"raw": text} for plain-text results such as snapshots.
func decodeResult(result *mcp.CallToolResult) map[string]any {
	for _, content := range result.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(text.Text), &decoded); err == nil {
			return decoded
		}
		return map[string]any{"raw": text.Text}
	}
	return map[string]any{}
}
