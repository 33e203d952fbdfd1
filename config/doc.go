// Package config loads guardchain settings and assembles guards from them.
//
// Load reads an optional YAML file, then GUARDCHAIN_-prefixed environment
// variables ("__" separates nesting levels, so GUARDCHAIN_RATELIMIT__MAX sets
// ratelimit.max), then fills defaults for anything still unset.
//
// Build turns a validated Config into guards in the recommended order:
// trace, bulkhead, route validator, authenticator, authorizer, rate limiter,
// response cache. Free-form strategy options are resolved through
// secret.Resolver before they reach auth.Registry, so values such as
// "secretref:env:JWT_SECRET" never appear in the file itself.
package config
