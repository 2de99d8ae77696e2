// Package mcpgw implements the MCP integration subsystem: a lifecycle
// manager, multi-transport connection pool (local subprocess and streaming
// HTTP), dynamic peer registration, and a tool-selection filter, together
// with a re-exported MCP server (see the reexporter subpackage) that lets
// other gateways invoke this one peer-to-peer.
package mcpgw

import "fmt"

// Kind discriminates the exhaustive set of error conditions this package can
// surface. Concrete errors always carry one of these as a first-class,
// type-switchable field rather than relying on string matching or a
// proliferation of error types.
type Kind string

const (
	// KindInvalidConfig marks a catalog parse or peer-registration validation
	// failure. Permanent — the caller must edit the inputs.
	KindInvalidConfig Kind = "invalid_config"
	// KindConnectionError marks a transport that could not be established or
	// was dropped mid-session.
	KindConnectionError Kind = "connection_error"
	// KindConnectionTimeout marks a connect/handshake that exceeded its
	// configured timeout.
	KindConnectionTimeout Kind = "connection_timeout"
	// KindNotFound marks an unknown server name.
	KindNotFound Kind = "not_found"
	// KindNotReady marks a server whose session exists but is not Ready.
	KindNotReady Kind = "not_ready"
	// KindDisabled marks a server present in the catalog with enabled=false.
	KindDisabled Kind = "disabled"
	// KindInvalidArgs marks a tool-call argument that failed local schema
	// validation before any transport I/O was attempted.
	KindInvalidArgs Kind = "invalid_args"
	// KindToolExecutionError marks an upstream tool-level failure, or a
	// transport that died mid-call.
	KindToolExecutionError Kind = "tool_execution_error"
	// KindCancelled marks a caller-driven cancellation.
	KindCancelled Kind = "cancelled"
)

// Error is the single error type the package returns. Server is always
// populated when known so that user-visible messages include it, per spec.
type Error struct {
	Kind    Kind
	Server  string
	Message string
	Err     error // wrapped cause, if any

	// Disconnect marks a ToolExecutionError that was actually caused by the
	// transport dying mid-call rather than the tool itself failing. The Kind
	// stays ToolExecutionError (spec.md §4.1/§7 classify it that way), but
	// ServerSession.maybeFail still needs to tell the two apart to know when
	// to demote the session.
	Disconnect bool
}

func (e *Error) Error() string {
	if e.Server != "" {
		if e.Err != nil {
			return fmt.Sprintf("mcpgw: %s: %s: %s: %v", e.Kind, e.Server, e.Message, e.Err)
		}
		return fmt.Sprintf("mcpgw: %s: %s: %s", e.Kind, e.Server, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("mcpgw: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("mcpgw: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewInvalidConfigError lets callers outside this package (e.g. the REST
// layer rejecting a malformed request body) report the same InvalidConfig
// kind this package uses internally, so statusFor-style HTTP mapping stays
// uniform regardless of which layer first noticed the bad input.
func NewInvalidConfigError(server, message string, wrapped error) *Error {
	return errInvalidConfig(server, message, wrapped)
}

// newErr builds an *Error. wrapped may be nil.
func newErr(kind Kind, server, message string, wrapped error) *Error {
	return &Error{Kind: kind, Server: server, Message: message, Err: wrapped}
}

func errInvalidConfig(server, message string, wrapped error) *Error {
	return newErr(KindInvalidConfig, server, message, wrapped)
}

func errConnection(server, message string, wrapped error) *Error {
	return newErr(KindConnectionError, server, message, wrapped)
}

func errConnectionTimeout(server, message string, wrapped error) *Error {
	return newErr(KindConnectionTimeout, server, message, wrapped)
}

func errNotFound(server string) *Error {
	return newErr(KindNotFound, server, "no such server", nil)
}

func errNotReady(server string) *Error {
	return newErr(KindNotReady, server, "session is not ready", nil)
}

func errDisabled(server string) *Error {
	return newErr(KindDisabled, server, "server is disabled", nil)
}

func errInvalidArgs(server, message string, wrapped error) *Error {
	return newErr(KindInvalidArgs, server, message, wrapped)
}

func errToolExecution(server, message string, wrapped error) *Error {
	return newErr(KindToolExecutionError, server, message, wrapped)
}

// errToolExecutionDisconnect reports a ToolExecutionError caused by the
// transport dropping mid-call. It stays ToolExecutionError so callers see a
// per-call failure, but flags Disconnect so maybeFail still demotes the
// session instead of leaving it Ready over a dead conn.
func errToolExecutionDisconnect(server, message string, wrapped error) *Error {
	e := errToolExecution(server, message, wrapped)
	e.Disconnect = true
	return e
}

func errCancelled(server string) *Error {
	return newErr(KindCancelled, server, "call cancelled", nil)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	for {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
	return e.Kind == kind
}
