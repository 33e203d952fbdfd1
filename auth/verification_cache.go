package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/guardchain/guard"
)

// VerificationCacheConfig configures a VerificationCache.
type VerificationCacheConfig struct {
	// Size bounds the number of cached principals.
	// Default: 1024
	Size int

	// TTL bounds how long a verified credential is trusted.
	// Default: 1 minute
	TTL time.Duration

	// Timeout bounds a shared verification. It runs detached from any single
	// caller's cancellation.
	// Default: 10 seconds
	Timeout time.Duration

	// Now is the clock used for expiry.
	// Default: time.Now
	Now func() time.Time
}

type cachedPrincipal struct {
	principal *guard.Principal
	expiresAt time.Time
}

// VerificationCache memoizes successful verifications keyed by a hash of the
// strategy name and raw credential. Entries expire at the earlier of the
// configured TTL and the principal's own expiry. Failures are never cached.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent verifications of the
//     same credential are collapsed into one call that is not tied to any
//     single caller's context.
//   - Ownership: cached principals are shared and must not be mutated.
type VerificationCache struct {
	entries *lru.Cache[string, cachedPrincipal]
	group   singleflight.Group
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewVerificationCache creates a bounded verification cache.
func NewVerificationCache(config VerificationCacheConfig) (*VerificationCache, error) {
	if config.Size <= 0 {
		config.Size = 1024
	}
	if config.TTL <= 0 {
		config.TTL = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	entries, err := lru.New[string, cachedPrincipal](config.Size)
	if err != nil {
		return nil, err
	}
	return &VerificationCache{
		entries: entries,
		ttl:     config.TTL,
		timeout: config.Timeout,
		now:     config.Now,
	}, nil
}

// Verify returns a cached principal for cred or calls verify and caches the
// result.
func (c *VerificationCache) Verify(
	ctx context.Context,
	strategy string,
	cred Credential,
	verify func(ctx context.Context) (*guard.Principal, error),
) (*guard.Principal, error) {
	key := credentialKey(strategy, cred.Value)

	if entry, ok := c.entries.Get(key); ok {
		if c.now().Before(entry.expiresAt) {
			return entry.principal, nil
		}
		c.entries.Remove(key)
	}

	// The shared call outlives any one caller; each caller still leaves on
	// its own cancellation.
	ch := c.group.DoChan(key, func() (any, error) {
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		p, err := verify(vctx)
		if err != nil {
			return nil, err
		}
		if p != nil {
			c.store(key, p)
		}
		return p, nil
	})
	select {
	case <-ctx.Done():
		return nil, guard.NewInternalError("request_cancelled", "request cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p, _ := res.Val.(*guard.Principal)
		return p, nil
	}
}

func (c *VerificationCache) store(key string, p *guard.Principal) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	if !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(expiresAt) {
		expiresAt = p.ExpiresAt
	}
	if !expiresAt.After(now) {
		return
	}
	entry := cachedPrincipal{principal: p, expiresAt: expiresAt}
	// Insert if absent; only an expired resident is replaced.
	if old, found, _ := c.entries.PeekOrAdd(key, entry); found && !now.Before(old.expiresAt) {
		c.entries.Add(key, entry)
	}
}

// Invalidate drops the cached principal for a credential.
func (c *VerificationCache) Invalidate(strategy, raw string) {
	c.entries.Remove(credentialKey(strategy, raw))
}

// Purge drops every cached principal.
func (c *VerificationCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *VerificationCache) Len() int {
	return c.entries.Len()
}

// credentialKey hashes the raw credential so secrets are never held as map keys.
func credentialKey(strategy, raw string) string {
	h := sha256.Sum256([]byte(strategy + ":" + raw))
	return hex.EncodeToString(h[:])
}
