package auth

import (
	"context"
	"testing"

	"github.com/jonwraymond/guardchain/guard"
)

const docsPolicy = `package guardchain.authz

default allow := false

allow if {
	"admin" in input.principal.roles
}

allow if {
	input.request.method == "GET"
	input.request.params.owner == input.principal.id
}

reason := "only owners may read their documents" if not allow
`

func TestRegoPredicate(t *testing.T) {
	pred, err := NewRegoPredicate(context.Background(), RegoConfig{
		Modules: map[string]string{"docs.rego": docsPolicy},
	})
	if err != nil {
		t.Fatalf("NewRegoPredicate() error = %v", err)
	}

	tests := []struct {
		name      string
		principal *guard.Principal
		method    string
		owner     string
		allowed   bool
	}{
		{"admin", &guard.Principal{ID: "root", Roles: []string{"admin"}}, "DELETE", "someone", true},
		{"owner read", &guard.Principal{ID: "u1"}, "GET", "u1", true},
		{"owner write", &guard.Principal{ID: "u1"}, "PUT", "u1", false},
		{"stranger", &guard.Principal{ID: "u2"}, "GET", "u1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc := guard.NewContext(&guard.Request{
				Method: tt.method,
				Path:   "/docs/" + tt.owner,
				Params: map[string]string{"owner": tt.owner},
			})
			gc.Principal = tt.principal

			err := pred.Allow(context.Background(), gc)
			if tt.allowed {
				if err != nil {
					t.Errorf("Allow() error = %v, want nil", err)
				}
				return
			}
			ge := guard.AsError(err)
			if ge == nil || ge.Code != "predicate_rejected" {
				t.Fatalf("Allow() error = %v, want predicate_rejected", err)
			}
			if ge.Message != "only owners may read their documents" {
				t.Errorf("Message = %q", ge.Message)
			}
		})
	}
}

func TestRegoPredicate_InAuthorizer(t *testing.T) {
	pred, err := NewRegoPredicate(context.Background(), RegoConfig{
		Modules: map[string]string{"docs.rego": docsPolicy},
	})
	if err != nil {
		t.Fatalf("NewRegoPredicate() error = %v", err)
	}
	a := NewAuthorizer(AuthorizerConfig{Predicate: pred})

	gc := guard.NewContext(&guard.Request{Method: "GET", Params: map[string]string{"owner": "u1"}})
	gc.Principal = &guard.Principal{ID: "u2"}
	if ge := guard.AsError(a.Attempt(context.Background(), gc)); ge == nil || ge.Kind != guard.KindAuthorization {
		t.Errorf("Attempt() = %v, want authorization error", ge)
	}
}

func TestNewRegoPredicate_Errors(t *testing.T) {
	if _, err := NewRegoPredicate(context.Background(), RegoConfig{}); err == nil {
		t.Error("expected error for empty modules")
	}
	_, err := NewRegoPredicate(context.Background(), RegoConfig{
		Modules: map[string]string{"bad.rego": "package x\nallow if {"},
	})
	if err == nil {
		t.Error("expected parse error")
	}
}
