package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jonwraymond/guardchain/config"
	"github.com/jonwraymond/guardchain/guard"
	"github.com/jonwraymond/guardchain/httpguard"
	"github.com/jonwraymond/guardchain/validate"
)

var signupSchema = validate.Schema{
	Body: &validate.Object{
		Strict: true,
		Fields: map[string]*validate.Field{
			"email": {Type: validate.TypeString, Required: true, Format: validate.FormatEmail, Trim: true, Lowercase: true},
			"name":  {Type: validate.TypeString, Required: true, MinLength: validate.Int(1), MaxLength: validate.Int(100), Trim: true},
			"age":   {Type: validate.TypeInteger, Min: validate.Float(13), Max: validate.Float(150)},
		},
	},
}

var itemSchema = validate.Schema{
	Params: &validate.Object{
		Fields: map[string]*validate.Field{
			"id": {Type: validate.TypeString, Required: true, Format: validate.FormatUUID},
		},
	},
	Query: &validate.Object{
		Fields: map[string]*validate.Field{
			"fields": {Type: validate.TypeArray, Items: &validate.Field{Type: validate.TypeString, Enum: []any{"name", "owner", "created"}}},
		},
	},
}

type api struct {
	guards  *config.Guards
	maxBody int64
	now     func() time.Time
}

func newAPI(guards *config.Guards, maxBody int64) *api {
	return &api{guards: guards, maxBody: maxBody, now: time.Now}
}

func (a *api) mount(r chi.Router) {
	r.Method(http.MethodPost, "/signup", a.handle(a.signup, validate.MustNew(signupSchema)))
	r.Method(http.MethodGet, "/items/{id}", a.handle(a.item, validate.MustNew(itemSchema)))
	r.Method(http.MethodPut, "/items/{id}", a.handle(a.item, validate.MustNew(itemSchema)))
	r.Method(http.MethodGet, "/whoami", a.handle(a.whoami))
}

func (a *api) handle(h guard.Handler, route ...guard.Guard) http.Handler {
	return httpguard.Handler(a.guards.Chain(route...), h, httpguard.WithMaxBodyBytes(a.maxBody))
}

func (a *api) signup(_ context.Context, gc *guard.Context) (*guard.Response, error) {
	payload, _ := validate.PayloadFrom(gc)
	return guard.JSON(http.StatusCreated, map[string]any{
		"id":      uuid.NewString(),
		"account": payload.Body,
		"traceId": gc.TraceID,
	})
}

func (a *api) item(_ context.Context, gc *guard.Context) (*guard.Response, error) {
	payload, _ := validate.PayloadFrom(gc)
	body := map[string]any{
		"id":       payload.Params["id"],
		"fields":   payload.Query["fields"],
		"servedAt": a.now().UTC().Format(time.RFC3339Nano),
	}
	if gc.Principal != nil {
		body["owner"] = gc.Principal.ID
	}
	if gc.Request.Method == http.MethodPut {
		body["updated"] = true
	}
	return guard.JSON(http.StatusOK, body)
}

func (a *api) whoami(_ context.Context, gc *guard.Context) (*guard.Response, error) {
	if gc.Principal == nil {
		return guard.JSON(http.StatusOK, map[string]any{"anonymous": true})
	}
	return guard.JSON(http.StatusOK, map[string]any{
		"id":          gc.Principal.ID,
		"roles":       gc.Principal.Roles,
		"permissions": gc.Principal.Permissions,
		"method":      gc.Principal.Method,
	})
}
