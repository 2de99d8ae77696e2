package mcpgw

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentStarts bounds how many transports Manager.Initialize dials at
// once; unlimited fan-out would let one catalog with many stdio entries
// exhaust file descriptors or process slots on boot.
const maxConcurrentStarts = 8

// ServerStatus is the read-only snapshot listServers() and the re-exporter
// hand out; it never carries a live reference into Manager state.
type ServerStatus struct {
	Name          string
	Enabled       bool
	Connected     bool
	State         State
	Description   string
	Functions     []string
	LastError     string
}

// InitSummary is the structured result of a full Initialize/ReloadAll pass:
// which servers came up Ready, which failed and why, and which were skipped
// as disabled. It is not a diff of the catalog.
type InitSummary struct {
	Ready   []string
	Failed  map[string]string // name -> error message
	Skipped []string          // disabled entries
}

func (s InitSummary) String() string {
	return fmt.Sprintf("mcpgw: %d ready, %d failed, %d skipped", len(s.Ready), len(s.Failed), len(s.Skipped))
}

// ReloadHook is extra work Manager fires at the end of every Reload/ReloadAll
// pass, whether it succeeded or failed (§3 "hook extensibility" — e.g.
// invalidating a caller-side listServers() cache).
type ReloadHook func(summary InitSummary)

type serverEntry struct {
	params  *ServerParams
	session *ServerSession
}

// Manager is the process-wide orchestrator (C4). Exactly one instance
// should exist per process; tests construct isolated instances freely via
// NewManager (§9 "Testing requires the ability to construct an isolated
// Manager").
type Manager struct {
	mu            sync.Mutex
	byName        map[string]*serverEntry
	order         []string // registration order, for reverse-order shutdown
	defaultTimeout int
	hooks         []ReloadHook
	scanner       *Scanner
}

// NewManager builds an empty Manager. Call Initialize (or AddPeer
// repeatedly) to populate it.
func NewManager(timeoutSeconds int) *Manager {
	timeout := timeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds // package default, see params.go
	}
	return &Manager{
		byName:         make(map[string]*serverEntry),
		defaultTimeout: timeout,
		scanner:        NewScanner(),
	}
}

// AddReloadHook registers a hook invoked after every Reload/ReloadAll.
func (m *Manager) AddReloadHook(h ReloadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Initialize registers every catalog entry and starts the enabled ones with
// bounded concurrency (§4.4). A single server's failure never aborts the
// others, and per-server errors are reported in the returned summary rather
// than as the error result. A dial failure is also captured into that
// server's ServerSession (Failed, with lastError); a server blocked by the
// security scan, or whose script cannot be read, appears only in the
// summary and its session stays Pending.
func (m *Manager) Initialize(ctx context.Context, catalog map[string]*ServerParams) (InitSummary, error) {
	m.mu.Lock()
	for name, p := range catalog {
		if _, exists := m.byName[name]; exists {
			m.mu.Unlock()
			return InitSummary{}, errInvalidConfig(name, "duplicate server name in catalog", nil)
		}
		m.byName[name] = &serverEntry{params: p, session: newSession(p)}
		m.order = append(m.order, name)
	}
	m.mu.Unlock()

	return m.startEnabled(ctx, orderedNames(catalog))
}

func orderedNames(catalog map[string]*ServerParams) []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	return names
}

// startEnabled dials every named, enabled server concurrently (bounded by
// maxConcurrentStarts via errgroup.SetLimit), closing any conn a session
// already holds first, and waits for all of them to reach Ready or Failed.
func (m *Manager) startEnabled(ctx context.Context, names []string) (InitSummary, error) {
	summary := InitSummary{Failed: make(map[string]string)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStarts)

	for _, name := range names {
		name := name
		m.mu.Lock()
		entry, ok := m.byName[name]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if !entry.params.Enabled {
			mu.Lock()
			summary.Skipped = append(summary.Skipped, name)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if report, err := m.scanner.Scan(entry.params); err != nil {
				mu.Lock()
				summary.Failed[name] = err.Error()
				mu.Unlock()
				return nil
			} else if report != nil && report.Blocked {
				blockedErr := errInvalidConfig(name, "stdio script failed security scan (critical finding)", nil)
				mu.Lock()
				summary.Failed[name] = blockedErr.Error()
				mu.Unlock()
				return nil
			}

			err := entry.session.reload(gctx, entry.params)
			mu.Lock()
			if err != nil {
				summary.Failed[name] = err.Error()
			} else {
				summary.Ready = append(summary.Ready, name)
			}
			mu.Unlock()
			return nil // per-server errors never abort the group (spec.md §8.2)
		})
	}

	_ = g.Wait() // g.Go never returns a non-nil error, so this cannot fail
	log.Printf("[mcpgw:manager] initialize: %s", summary.String())
	return summary, nil
}

// GetToolkit resolves (server, allowedFunctions?) to a bound Toolkit.
func (m *Manager) GetToolkit(ctx context.Context, serverName string, allowedFunctions []string) (*Toolkit, error) {
	m.mu.Lock()
	entry, ok := m.byName[serverName]
	m.mu.Unlock()
	if !ok {
		return nil, errNotFound(serverName)
	}
	if !entry.params.Enabled {
		return nil, errDisabled(serverName)
	}
	state, _ := entry.session.State()
	if state != StateReady {
		return nil, errNotReady(serverName)
	}
	return newToolkit(ctx, entry.session, serverName, allowedFunctions)
}

// ListServers snapshots every registered server in registration order. It
// is not a pure read of stored state: Functions is filled by a listTools
// call on each Ready session, made while the Manager's lock is held, so it
// can block on transport I/O.
func (m *Manager) ListServers() []ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ServerStatus, 0, len(m.order))
	for _, name := range m.order {
		entry, ok := m.byName[name]
		if !ok {
			continue
		}
		state, lastErr := entry.session.State()
		status := ServerStatus{
			Name:        name,
			Enabled:     entry.params.Enabled,
			Connected:   state == StateReady,
			State:       state,
			Description: entry.params.Description,
		}
		if lastErr != nil {
			status.LastError = lastErr.Error()
		}
		if state == StateReady {
			if tools, err := entry.session.listTools(context.Background()); err == nil {
				names := make([]string, len(tools))
				for i, t := range tools {
					names[i] = t.Name
				}
				status.Functions = names
			}
		}
		out = append(out, status)
	}
	return out
}

// Reload closes and re-dials a single server's session. Concurrent reloads
// of the same server are serialized by ServerSession's own mutex; different
// servers reload in parallel (§4.4).
func (m *Manager) Reload(ctx context.Context, serverName string) error {
	m.mu.Lock()
	entry, ok := m.byName[serverName]
	m.mu.Unlock()
	if !ok {
		return errNotFound(serverName)
	}

	if report, err := m.scanner.Scan(entry.params); err != nil {
		m.fireHooks(InitSummary{Failed: onlyErr(err, serverName)})
		return err
	} else if report != nil && report.Blocked {
		blockedErr := errInvalidConfig(serverName, "stdio script failed security scan (critical finding)", nil)
		m.fireHooks(InitSummary{Failed: onlyErr(blockedErr, serverName)})
		return blockedErr
	}

	err := entry.session.reload(ctx, entry.params)
	m.fireHooks(InitSummary{Ready: onlyIf(err == nil, serverName), Failed: onlyErr(err, serverName)})
	return err
}

// ReloadAll closes and re-dials every enabled server, through the same scan
// gate and bounded fan-out as Initialize, and returns that pass's
// ready/failed/skipped InitSummary.
func (m *Manager) ReloadAll(ctx context.Context) (InitSummary, error) {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	summary, err := m.startEnabled(ctx, names)
	m.fireHooks(summary)
	return summary, err
}

func (m *Manager) fireHooks(summary InitSummary) {
	m.mu.Lock()
	hooks := append([]ReloadHook(nil), m.hooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h(summary)
	}
}

func onlyIf(cond bool, name string) []string {
	if cond {
		return []string{name}
	}
	return nil
}

func onlyErr(err error, name string) map[string]string {
	if err == nil {
		return nil
	}
	return map[string]string{name: err.Error()}
}

// AddPeer registers a new http-transport upstream at runtime (C5 delegates
// here). Refuses a name collision with InvalidConfig and mutates no state
// in that case (spec.md §8.3).
func (m *Manager) AddPeer(ctx context.Context, name, url, authToken string) (ServerStatus, error) {
	if name == "" {
		return ServerStatus{}, errInvalidConfig(name, "peer name must not be empty", nil)
	}

	m.mu.Lock()
	if _, exists := m.byName[name]; exists {
		m.mu.Unlock()
		return ServerStatus{}, errInvalidConfig(name, "a server with this name already exists", nil)
	}
	m.mu.Unlock()

	p := &ServerParams{
		Name:           name,
		Transport:      TransportHTTP,
		Enabled:        true,
		TimeoutSeconds: m.defaultTimeout,
		URL:            url,
	}
	if authToken != "" {
		p.Auth = &Auth{Scheme: AuthBearer, Token: authToken}
	}

	entry := &serverEntry{params: p, session: newSession(p)}
	m.mu.Lock()
	m.byName[name] = entry
	m.order = append(m.order, name)
	m.mu.Unlock()

	err := entry.session.open(ctx)

	status := ServerStatus{Name: name, Enabled: true}
	state, lastErr := entry.session.State()
	status.State = state
	status.Connected = state == StateReady
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	if state == StateReady {
		if tools, terr := entry.session.listTools(ctx); terr == nil {
			names := make([]string, len(tools))
			for i, t := range tools {
				names[i] = t.Name
			}
			status.Functions = names
		}
	}
	return status, err
}

// RemovePeer transitions a server to Closing then Closed and drops it from
// the catalog. Works for any transport, not only peers added via AddPeer,
// matching the Manager's uniform shutdown path.
func (m *Manager) RemovePeer(name string) error {
	m.mu.Lock()
	entry, ok := m.byName[name]
	if ok {
		delete(m.byName, name)
		m.order = removeName(m.order, name)
	}
	m.mu.Unlock()
	if !ok {
		return errNotFound(name)
	}
	if err := entry.session.close(); err != nil {
		log.Printf("[mcpgw:manager] close %q during removePeer: %v", name, err)
	}
	return nil
}

func removeName(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// Shutdown closes every session in reverse registration order, bounding
// each close and swallowing (but logging) errors. Idempotent: a second call
// finds every session already Closed and returns immediately.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		m.mu.Lock()
		entry, ok := m.byName[name]
		m.mu.Unlock()
		if !ok {
			continue
		}

		done := make(chan error, 1)
		go func() { done <- entry.session.close() }()

		select {
		case err := <-done:
			if err != nil {
				log.Printf("[mcpgw:manager] shutdown: close %q: %v", name, err)
			}
		case <-time.After(5 * time.Second):
			log.Printf("[mcpgw:manager] shutdown: close %q did not finish within 5s, abandoning", name)
		case <-ctx.Done():
			log.Printf("[mcpgw:manager] shutdown: cancelled while closing %q", name)
			return
		}
	}
	log.Printf("[mcpgw:manager] shutdown complete")
}
