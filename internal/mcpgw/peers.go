package mcpgw

import (
	"context"
	"net/url"
	"strings"
)

// PeerStatus is the compact status C5 returns to REST callers (§4.5).
type PeerStatus struct {
	Name          string
	Connected     bool
	FunctionCount int
	LastError     string
}

// PeerRegistry is the thin façade (C5) external API layers use to
// manipulate the HTTP subset of Manager state dynamically. It owns no
// state of its own: every call validates arguments, then delegates.
type PeerRegistry struct {
	manager *Manager
}

// NewPeerRegistry wraps manager for peer-registration use.
func NewPeerRegistry(manager *Manager) *PeerRegistry {
	return &PeerRegistry{manager: manager}
}

// AddPeer validates name/url shape and delegates to Manager.AddPeer.
func (r *PeerRegistry) AddPeer(ctx context.Context, name, rawURL, authToken string) (PeerStatus, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PeerStatus{}, errInvalidConfig(name, "peer name must not be empty", nil)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return PeerStatus{}, errInvalidConfig(name, "peer url must be an absolute URI", err)
	}

	status, err := r.manager.AddPeer(ctx, name, rawURL, authToken)
	return PeerStatus{
		Name:          status.Name,
		Connected:     status.Connected,
		FunctionCount: len(status.Functions),
		LastError:     status.LastError,
	}, err
}

// RemovePeer delegates to Manager.RemovePeer.
func (r *PeerRegistry) RemovePeer(name string) error {
	if strings.TrimSpace(name) == "" {
		return errInvalidConfig(name, "peer name must not be empty", nil)
	}
	return r.manager.RemovePeer(name)
}
