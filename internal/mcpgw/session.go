package mcpgw

import (
	"context"
	"errors"
	"log"
	"sync"
)

// State is a ServerSession's position in the Pending → Initializing →
// Ready/Failed → Closing → Closed lifecycle (spec.md §5).
type State string

const (
	StatePending      State = "pending"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
)

// ServerSession owns exactly one conn for exactly one catalog entry and
// serializes every reload, close, and call against it. Nothing outside this
// file ever touches c.conn directly.
type ServerSession struct {
	mu     sync.Mutex
	reloadMu sync.Mutex // serializes overlapping reload calls
	params *ServerParams
	state  State
	c      conn
	lastErr error
}

// newSession builds a Pending session; it does not dial anything.
func newSession(p *ServerParams) *ServerSession {
	return &ServerSession{params: p, state: StatePending}
}

// open transitions Pending/Failed → Initializing → Ready/Failed, dialing the
// transport for the session's current params. Safe to call again on a
// Failed session; reload resets the session to Pending and re-enters here.
func (s *ServerSession) open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady || s.state == StateInitializing {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return errNotReady(s.params.Name)
	}
	s.state = StateInitializing
	params := s.params
	s.mu.Unlock()

	c, err := dialFor(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		log.Printf("[mcpgw:session] %q failed to start: %v", params.Name, err)
		return err
	}
	s.c = c
	s.state = StateReady
	s.lastErr = nil
	log.Printf("[mcpgw:session] %q ready", params.Name)
	return nil
}

// State returns the session's current state and, when Failed, the error
// that caused it.
func (s *ServerSession) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// listTools delegates to the live conn. Fails fast with NotReady rather than
// touching the transport when the session is not Ready, per spec.md §5.
func (s *ServerSession) listTools(ctx context.Context) ([]ToolDescriptor, error) {
	c, err := s.readyConn()
	if err != nil {
		return nil, err
	}
	tools, err := c.listTools(ctx)
	if err != nil {
		s.maybeFail(err)
		return nil, err
	}
	return tools, nil
}

// callTool delegates to the live conn, demoting the session to Failed if the
// call reveals the transport died (§4.4: "a transport that died mid-call").
// A ctx without a deadline is bounded by defaultTimeoutSeconds.
func (s *ServerSession) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c, err := s.readyConn()
	if err != nil {
		return "", err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = withTimeout(ctx, defaultTimeoutSeconds)
		defer cancel()
	}
	text, err := c.callTool(ctx, name, args)
	if err != nil {
		s.maybeFail(err)
		return "", err
	}
	return text, nil
}

func (s *ServerSession) readyConn() (conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, errNotReady(s.params.Name)
	}
	return s.c, nil
}

// maybeFail demotes a Ready session to Failed when err indicates the
// underlying transport is no longer usable, so the next call short-circuits
// via readyConn instead of retrying a dead conn. A ToolExecutionError alone
// does not demote the session — only one flagged Disconnect does, since that
// is the transport itself dying rather than the tool call failing.
func (s *ServerSession) maybeFail(err error) {
	if !isSessionFatal(err) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		s.state = StateFailed
		s.lastErr = err
		log.Printf("[mcpgw:session] %q demoted to failed: %v", s.params.Name, err)
	}
}

// isSessionFatal reports whether err means the underlying transport is dead:
// either it failed outright (ConnectionError/ConnectionTimeout), or it is a
// ToolExecutionError that a disconnect caused rather than the tool itself.
func isSessionFatal(err error) bool {
	if IsKind(err, KindConnectionError) || IsKind(err, KindConnectionTimeout) {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindToolExecutionError && e.Disconnect
	}
	return false
}

// reload replaces params and re-dials, closing whatever conn was open first.
// Overlapping reloads of the same session are serialized by reloadMu. The old
// conn is detached and the session reset to Pending under mu, so a concurrent
// call fails fast with NotReady instead of reaching a half-replaced conn;
// open then dials the new params.
func (s *ServerSession) reload(ctx context.Context, p *ServerParams) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return errNotReady(s.params.Name)
	}
	old := s.c
	s.c = nil
	s.state = StatePending
	s.params = p
	s.mu.Unlock()

	if old != nil {
		_ = old.close()
	}

	return s.open(ctx)
}

// close is idempotent: Closing → Closed, releasing the conn exactly once.
func (s *ServerSession) close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	c := s.c
	s.c = nil
	s.mu.Unlock()

	var err error
	if c != nil {
		err = c.close()
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return err
}
