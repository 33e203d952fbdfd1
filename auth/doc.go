// Package auth provides the authentication and authorization guards.
//
// The Authenticator walks an ordered list of Strategies. The first strategy
// that finds a credential on the request owns the outcome: a verification
// failure fails the request immediately and later strategies are never
// consulted. Only the absence of a credential falls through. Verified
// principals may be memoized in a bounded VerificationCache.
//
// Built-in strategies:
//
//   - BearerStrategy: "Authorization: Bearer <token>", delegating to a
//     TokenVerifier such as JWTVerifier or IntrospectionVerifier.
//   - APIKeyStrategy: a header or query parameter looked up by SHA-256 hash.
//   - SessionStrategy: a session cookie resolved through a SessionStore
//     (in-memory or Redis).
//
// The Authorizer requires a principal and checks, in order, roles (any of),
// permissions (all of, optionally merged with a PermissionLookup) and a
// custom Predicate such as a RegoPredicate.
package auth
