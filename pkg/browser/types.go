package browser

import (
	"errors"
	"time"
)

// Kind selects the browser engine the remote tool server launches.
type Kind string

const (
	KindChromium Kind = "chromium"
	KindFirefox  Kind = "firefox"
	KindWebkit   Kind = "webkit"
)

// ValidKind reports whether k is a supported browser kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindChromium, KindFirefox, KindWebkit:
		return true
	}
	return false
}

// State is the mutable session state. Exactly one exists per Session;
// it is owned by the Session and reset to the zero value on Close,
// including on error paths.
type State struct {
	Initialized bool
	Kind        Kind
	Headless    bool
	ProfilePath string
	CurrentURL  string
	SessionID   string
}

// InitOptions configures session initialization.
type InitOptions struct {
	Kind     Kind
	Headless bool

	// ProfilePath optionally points at a persistent browser profile so
	// the automated browser reuses existing authentication.
	ProfilePath string
}

// ErrNotInitialized is returned for any action attempted while the
// session is uninitialized or closed. Actions never auto-initialize.
var ErrNotInitialized = errors.New("browser session not initialized")

// Remote tool names on the Playwright MCP server.
const (
	toolLaunch   = "browser_launch"
	toolNavigate = "browser_navigate"
	toolClick    = "browser_click"
	toolType     = "browser_type"
	toolEvaluate = "browser_evaluate"
	toolSnapshot = "browser_snapshot"
	toolWaitFor  = "browser_wait_for"
	toolClose    = "browser_close"
)

// DefaultActionTimeout bounds individual wait-style actions.
const DefaultActionTimeout = 30 * time.Second
