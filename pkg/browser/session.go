// Package browser owns the single mutable browser session driven through
// the remote tool-invocation layer. All state transitions go through
// Session methods; there are no package-level singletons.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/kustodash/pkg/logging"
	"github.com/entrhq/kustodash/pkg/mcptool"
	"github.com/entrhq/kustodash/pkg/snapshot"
)

// Session is a state machine over one remote browser instance:
//
//	Uninitialized -> Ready (Init) -> Ready (actions) -> Closed (Close)
//
// Ready is re-entrant for repeated actions. Actions are validated before
// dispatch and serialized by the session mutex: element refs and the
// current URL are only meaningful for the most recent page state, so
// concurrent actions against one session are never allowed.
type Session struct {
	mu      sync.Mutex
	invoker mcptool.Invoker
	server  string
	state   State
	logger  *logging.Logger
}

// NewSession creates an uninitialized session that dispatches actions
// through the given invoker.
func NewSession(invoker mcptool.Invoker, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		invoker: invoker,
		server:  mcptool.PlaywrightServer,
		logger:  logger,
	}
}

// State returns a copy of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentURL returns the URL of the last successful navigation.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentURL
}

// Init launches the remote browser. Calling Init on a session that is
// already initialized with the same (kind, headless) configuration is a
// no-op and issues no remote call; a mismatched configuration is an error
// and the caller must Close first.
func (s *Session) Init(ctx context.Context, opts InitOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Kind == "" {
		opts.Kind = KindChromium
	}
	if !ValidKind(opts.Kind) {
		return &mcptool.ValidationError{Msg: fmt.Sprintf("invalid browser kind %q", opts.Kind)}
	}

	if s.state.Initialized {
		if s.state.Kind == opts.Kind && s.state.Headless == opts.Headless {
			s.logger.Debugf("reusing browser session %s", s.state.SessionID)
			return nil
		}
		return fmt.Errorf("session already initialized with %s/headless=%t; close it before reconfiguring",
			s.state.Kind, s.state.Headless)
	}

	params := map[string]any{
		"browser":  string(opts.Kind),
		"headless": opts.Headless,
	}
	if opts.ProfilePath != "" {
		params["profilePath"] = opts.ProfilePath
	}

	s.logger.Infof("launching %s browser (headless=%t)", opts.Kind, opts.Headless)
	if _, err := s.invoker.Invoke(ctx, s.server, toolLaunch, params); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	s.state = State{
		Initialized: true,
		Kind:        opts.Kind,
		Headless:    opts.Headless,
		ProfilePath: opts.ProfilePath,
		SessionID:   uuid.New().String(),
	}
	return nil
}

// Navigate loads a URL. CurrentURL is updated only when navigation
// succeeds.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if url == "" {
		return &mcptool.ValidationError{Msg: "navigate: url is required"}
	}

	s.logger.Infof("navigating to %s", url)
	if _, err := s.invoker.Invoke(ctx, s.server, toolNavigate, map[string]any{"url": url}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	s.state.CurrentURL = url
	return nil
}

// Click clicks the element identified by ref. The ref must come from the
// snapshot taken immediately before this call; element is a human-readable
// description passed through for the tool server's logs.
func (s *Session) Click(ctx context.Context, ref snapshot.ElementRef, element string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if ref == "" {
		return &mcptool.ValidationError{Msg: "click: element ref is required"}
	}

	s.logger.Debugf("clicking %q (ref=%s)", element, ref)
	_, err := s.invoker.Invoke(ctx, s.server, toolClick, map[string]any{
		"ref":     string(ref),
		"element": element,
	})
	if err != nil {
		return fmt.Errorf("click %q: %w", element, err)
	}
	return nil
}

// Type enters text into the element identified by ref.
func (s *Session) Type(ctx context.Context, ref snapshot.ElementRef, element, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if ref == "" {
		return &mcptool.ValidationError{Msg: "type: element ref is required"}
	}
	if text == "" {
		return &mcptool.ValidationError{Msg: "type: text is required"}
	}

	s.logger.Debugf("typing %d chars into %q (ref=%s)", len(text), element, ref)
	_, err := s.invoker.Invoke(ctx, s.server, toolType, map[string]any{
		"ref":     string(ref),
		"element": element,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("type into %q: %w", element, err)
	}
	return nil
}

// GetText returns the innerText of the first element matching a CSS
// selector, via an in-page evaluation.
func (s *Session) GetText(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		return "", &mcptool.ValidationError{Msg: "get text: selector is required"}
	}

	script := fmt.Sprintf("document.querySelector(%q)?.innerText ?? ''", selector)
	result, err := s.Evaluate(ctx, script)
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	return text, nil
}

// Evaluate runs a script in the page and returns the tool's "result"
// value, which may be any JSON shape.
func (s *Session) Evaluate(ctx context.Context, script string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if script == "" {
		return nil, &mcptool.ValidationError{Msg: "evaluate: script is required"}
	}

	result, err := s.invoker.Invoke(ctx, s.server, toolEvaluate, map[string]any{"function": script})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if value, ok := result["result"]; ok {
		return value, nil
	}
	if raw, ok := result["raw"]; ok {
		return raw, nil
	}
	return result, nil
}

// Snapshot captures the accessibility snapshot of the current page as raw
// text for the snapshot parser.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return "", err
	}

	result, err := s.invoker.Invoke(ctx, s.server, toolSnapshot, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	if raw, ok := result["raw"].(string); ok {
		return raw, nil
	}
	return "", fmt.Errorf("snapshot: unrecognized result shape (keys %v)", mapKeys(result))
}

// WaitForText blocks until the given text appears on the page or the
// timeout elapses. Timeouts surface as ordinary classified errors.
func (s *Session) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if text == "" {
		return &mcptool.ValidationError{Msg: "wait for text: text is required"}
	}
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}

	_, err := s.invoker.Invoke(ctx, s.server, toolWaitFor, map[string]any{
		"text": text,
		"time": timeout.Seconds(),
	})
	if err != nil {
		return fmt.Errorf("wait for %q: %w", text, err)
	}
	return nil
}

// Close shuts the remote browser down. It always resets the session
// state to defaults, even when the remote close call fails, so a session
// is never left half-open. Closing an uninitialized session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Initialized {
		return nil
	}

	s.logger.Infof("closing browser session %s", s.state.SessionID)
	_, err := s.invoker.Invoke(ctx, s.server, toolClose, map[string]any{})

	// Reset unconditionally: the local state machine must not depend on
	// the remote call's outcome.
	s.state = State{}

	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (s *Session) ready() error {
	if !s.state.Initialized {
		return ErrNotInitialized
	}
	return nil
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
