// Package httpguard runs guard chains behind net/http.
//
// FromRequest turns an *http.Request into a guard.Request: route params,
// query, canonical headers, the client address and a decoded body (JSON or
// URL-encoded form, size limited). Writer adapts http.ResponseWriter to
// guard.ResponseWriter. Handler ties both to a Chain:
//
//	r := chi.NewRouter()
//	r.Method(http.MethodPost, "/signup", httpguard.Handler(chain, signup))
//
// Requests whose body cannot be decoded never reach the chain's guards; they
// are rejected through the chain's error handler as validation errors.
package httpguard
