package mcpgw

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsKind_DirectMatch(t *testing.T) {
	err := errNotFound("files")
	if !IsKind(err, KindNotFound) {
		t.Error("expected KindNotFound match")
	}
	if IsKind(err, KindDisabled) {
		t.Error("unexpected KindDisabled match")
	}
}

func TestIsKind_UnwrapsWrappedChain(t *testing.T) {
	inner := errConnectionTimeout("remote", "handshake timed out", nil)
	wrapped := fmt.Errorf("initialize: %w", inner)
	if !IsKind(wrapped, KindConnectionTimeout) {
		t.Error("expected IsKind to unwrap through fmt.Errorf chain")
	}
}

func TestIsKind_NilError(t *testing.T) {
	if IsKind(nil, KindNotFound) {
		t.Error("IsKind(nil, ...) should be false")
	}
}

func TestIsKind_NonMcpgwError(t *testing.T) {
	if IsKind(errors.New("plain"), KindNotFound) {
		t.Error("a plain error should never match any Kind")
	}
}

func TestError_MessageIncludesServerWhenPresent(t *testing.T) {
	err := errInvalidConfig("files", "missing command", nil)
	got := err.Error()
	if got == "" {
		t.Fatal("empty error message")
	}
	for _, want := range []string{"invalid_config", "files", "missing command"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, want it to contain %q", got, want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := errToolExecution("svc", "call failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through Unwrap to the wrapped cause")
	}
}

func TestNewInvalidConfigError_MatchesInternalConstructor(t *testing.T) {
	err := NewInvalidConfigError("", "decode request body", errors.New("unexpected EOF"))
	if !IsKind(err, KindInvalidConfig) {
		t.Error("NewInvalidConfigError should produce a KindInvalidConfig error")
	}
}
