package auth

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jonwraymond/guardchain/guard"
)

// PermissionLookup loads grants for a principal from an external source.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation.
// - Errors: any error fails the request as an internal error.
type PermissionLookup interface {
	Permissions(ctx context.Context, p *guard.Principal) ([]string, error)
}

// LookupFunc adapts a function to PermissionLookup.
type LookupFunc func(ctx context.Context, p *guard.Principal) ([]string, error)

// Permissions calls f.
func (f LookupFunc) Permissions(ctx context.Context, p *guard.Principal) ([]string, error) {
	return f(ctx, p)
}

// RBACConfig maps roles to permissions.
type RBACConfig struct {
	// Roles defines each role.
	Roles map[string]RoleConfig

	// DefaultRole applies to principals without roles.
	DefaultRole string
}

// RoleConfig defines the grants of one role.
type RoleConfig struct {
	// Permissions are grants such as "docs:read" or "docs:*".
	Permissions []string

	// Inherits lists roles whose grants this role also receives.
	Inherits []string
}

// RBACLookup expands a principal's roles, with inheritance, into permissions.
type RBACLookup struct {
	config RBACConfig
}

// NewRBACLookup creates a role-based lookup.
func NewRBACLookup(config RBACConfig) *RBACLookup {
	return &RBACLookup{config: config}
}

// Permissions returns the union of grants for every reachable role.
func (l *RBACLookup) Permissions(_ context.Context, p *guard.Principal) ([]string, error) {
	var perms []string
	for _, role := range l.expandRoles(p.Roles) {
		for _, perm := range l.config.Roles[role].Permissions {
			if !slices.Contains(perms, perm) {
				perms = append(perms, perm)
			}
		}
	}
	return perms, nil
}

// expandRoles walks inheritance breadth-first, visiting each role once.
func (l *RBACLookup) expandRoles(roles []string) []string {
	queue := append([]string(nil), roles...)
	if len(queue) == 0 && l.config.DefaultRole != "" {
		queue = append(queue, l.config.DefaultRole)
	}

	seen := make(map[string]bool)
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		out = append(out, current)
		queue = append(queue, l.config.Roles[current].Inherits...)
	}
	return out
}

// SQLLookupConfig configures a SQL-backed permission lookup.
type SQLLookupConfig struct {
	// DB is the database handle. Any database/sql driver works.
	DB *sql.DB

	// Query selects one permission per row for a principal id bound to the
	// first placeholder.
	// Default: "SELECT permission FROM principal_permissions WHERE principal_id = $1"
	Query string
}

// SQLLookup loads grants from a relational table.
type SQLLookup struct {
	db    *sql.DB
	query string
}

// NewSQLLookup creates a SQL permission lookup.
func NewSQLLookup(config SQLLookupConfig) (*SQLLookup, error) {
	if config.DB == nil {
		return nil, ErrNoStore
	}
	if config.Query == "" {
		config.Query = "SELECT permission FROM principal_permissions WHERE principal_id = $1"
	}
	return &SQLLookup{db: config.DB, query: config.Query}, nil
}

// Permissions queries grants for p.ID.
func (l *SQLLookup) Permissions(ctx context.Context, p *guard.Principal) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, l.query, p.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: query permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var perms []string
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, fmt.Errorf("auth: scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate permissions: %w", err)
	}
	return perms, nil
}

// CachedLookupConfig configures a CachedLookup.
type CachedLookupConfig struct {
	// Size bounds the number of cached principals.
	// Default: 1024
	Size int

	// TTL bounds how long grants are reused.
	// Default: 30 seconds
	TTL time.Duration
}

// CachedLookup memoizes another lookup per principal id.
type CachedLookup struct {
	inner   PermissionLookup
	entries *expirable.LRU[string, []string]
}

// NewCachedLookup wraps inner with an expiring LRU.
func NewCachedLookup(inner PermissionLookup, config CachedLookupConfig) *CachedLookup {
	if config.Size <= 0 {
		config.Size = 1024
	}
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	return &CachedLookup{
		inner:   inner,
		entries: expirable.NewLRU[string, []string](config.Size, nil, config.TTL),
	}
}

// Permissions returns cached grants or loads them from the inner lookup.
func (l *CachedLookup) Permissions(ctx context.Context, p *guard.Principal) ([]string, error) {
	if perms, ok := l.entries.Get(p.ID); ok {
		return perms, nil
	}
	perms, err := l.inner.Permissions(ctx, p)
	if err != nil {
		return nil, err
	}
	l.entries.Add(p.ID, perms)
	return perms, nil
}

// Invalidate drops cached grants for a principal id.
func (l *CachedLookup) Invalidate(id string) {
	l.entries.Remove(id)
}

var (
	_ PermissionLookup = LookupFunc(nil)
	_ PermissionLookup = (*RBACLookup)(nil)
	_ PermissionLookup = (*SQLLookup)(nil)
	_ PermissionLookup = (*CachedLookup)(nil)
)
