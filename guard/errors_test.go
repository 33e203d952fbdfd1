package guard

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsKindSentinel(t *testing.T) {
	tests := []struct {
		err      *Error
		sentinel error
	}{
		{NewValidationError(nil), ErrValidation},
		{NewAuthenticationError("x", "", nil), ErrAuthentication},
		{NewAuthorizationError("x", ""), ErrAuthorization},
		{NewRateLimitError(0), ErrRateLimit},
		{NewCacheError(nil), ErrCache},
		{NewInternalError("x", "", nil), ErrInternal},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
		}
		if errors.Is(tt.err, errors.New("other")) {
			t.Errorf("%v matched unrelated error", tt.err)
		}
	}
}

func TestError_UnwrapCause(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := NewCacheError(cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, missing cause", err.Error())
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}

	typed := NewAuthorizationError("missing_role", "")
	wrapped := fmt.Errorf("wrapped: %w", typed)
	if AsError(wrapped) != typed {
		t.Error("AsError should unwrap to the original *Error")
	}

	plain := AsError(errors.New("plain"))
	if plain.Kind != KindInternal {
		t.Errorf("Kind = %v, want internal", plain.Kind)
	}
}

func TestError_ErrorCodeDefault(t *testing.T) {
	err := &Error{Kind: KindAuthorization}
	if err.ErrorCode() != "authorization" {
		t.Errorf("ErrorCode() = %q", err.ErrorCode())
	}
}

func TestPrincipal_Permissions(t *testing.T) {
	p := &Principal{ID: "u1", Roles: []string{"editor"}, Permissions: []string{"docs:*", "users:read"}}

	tests := []struct {
		perm string
		want bool
	}{
		{"docs:read", true},
		{"docs:write", true},
		{"users:read", true},
		{"users:write", false},
	}
	for _, tt := range tests {
		if got := p.HasPermission(tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q) = %v, want %v", tt.perm, got, tt.want)
		}
	}
	if !p.HasAnyRole("admin", "editor") {
		t.Error("HasAnyRole should match editor")
	}
	if p.HasAnyRole("admin") {
		t.Error("HasAnyRole should not match admin")
	}
}
