// Package guard provides the request pipeline core: a per-request Context,
// the Guard contract, the Chain orchestrator that runs guards in order, and
// the error taxonomy with its centralized ErrorHandler.
//
// A Chain is built once per route and never mutated. Derived chains are
// created with Use or Clone and share no state with their base.
//
//	base := guard.New(
//	    guard.WithGuards(tracer, validator),
//	    guard.WithErrorHandler(guard.NewErrorHandler(guard.ErrorHandlerConfig{Production: true})),
//	)
//	admin := base.Use(authenticator, authorizer)
//	endpoint := admin.Protect(func(ctx context.Context, gc *guard.Context) (*guard.Response, error) {
//	    return guard.JSON(http.StatusOK, map[string]any{"user": gc.Principal.ID})
//	})
//
// Guards report failure by returning an error. Anything that is not already
// a *Error is converted to an internal error before it reaches the
// ErrorHandler, which is the only component that writes failure responses.
//
// The package is transport-agnostic. Collaborators translate their native
// request into a Request and provide a ResponseWriter; see package httpguard
// for the net/http adapter.
package guard
