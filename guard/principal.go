package guard

import (
	"slices"
	"strings"
	"time"
)

// Method indicates how a principal was authenticated.
type Method string

const (
	MethodNone          Method = "none"
	MethodBearer        Method = "bearer"
	MethodJWT           Method = "jwt"
	MethodAPIKey        Method = "api_key"
	MethodSession       Method = "session"
	MethodIntrospection Method = "oauth2"
)

// Principal is the authenticated identity attached to a Context.
//
// A Principal returned by a verifier may be shared between requests through
// the verification cache; treat it as read-only after creation.
type Principal struct {
	// ID is the opaque identifier (user ID, key ID, subject).
	ID string

	// Roles are the roles held by the principal.
	Roles []string

	// Permissions are explicit grants. Entries may end in "*".
	Permissions []string

	// Method records which strategy produced the principal.
	Method Method

	// Claims carries raw token or key metadata.
	Claims map[string]any

	// ExpiresAt is when the underlying credential expires. Zero means never.
	ExpiresAt time.Time

	// IssuedAt is when the underlying credential was issued.
	IssuedAt time.Time
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether any explicit grant covers perm.
func (p *Principal) HasPermission(perm string) bool {
	return MatchAny(p.Permissions, perm)
}

// IsExpired reports whether the credential has expired at now.
func (p *Principal) IsExpired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return now.After(p.ExpiresAt)
}

// MatchPermission matches a grant against a requested permission.
// A grant of "*" matches everything; a trailing "*" matches any suffix.
func MatchPermission(grant, perm string) bool {
	if grant == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(grant, "*"); ok {
		return strings.HasPrefix(perm, prefix)
	}
	return grant == perm
}

// MatchAny reports whether any grant matches perm.
func MatchAny(grants []string, perm string) bool {
	for _, g := range grants {
		if MatchPermission(g, perm) {
			return true
		}
	}
	return false
}
