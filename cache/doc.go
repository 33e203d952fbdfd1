// Package cache provides the response cache guard and its stores.
//
// For cacheable requests (GET and HEAD by default) the guard derives a key
// and consults a Store. A hit short-circuits the chain with the stored
// response; a miss lets the handler run and stores a successful (2xx)
// result when the request completes. Mutating requests evict the keys
// returned by the Invalidate function, with all of their query and principal
// variants, once the handler has succeeded.
//
// Keys are deterministic: cache:<METHOD>:<path>, plus the first 16 hex
// characters of a SHA-256 over the canonicalized query when one is present.
//
// Store failures never fail a request. They are reported to the Observer as
// cache errors and the request proceeds as a miss.
package cache
