package auth

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/jonwraymond/guardchain/guard"
)

// RegoConfig configures a Rego policy predicate.
type RegoConfig struct {
	// Modules maps file names to Rego v1 sources.
	Modules map[string]string

	// Query is evaluated against the input. It must produce an object with
	// a boolean "allow" and an optional string "reason".
	// Default: "data.guardchain.authz"
	Query string
}

// RegoPredicate evaluates an Open Policy Agent policy. The input document is
//
//	{"principal": {"id", "roles", "permissions", "claims"},
//	 "request":   {"method", "path", "params", "query", "body"}}
type RegoPredicate struct {
	query rego.PreparedEvalQuery
}

// NewRegoPredicate parses and prepares the policy.
func NewRegoPredicate(ctx context.Context, config RegoConfig) (*RegoPredicate, error) {
	if len(config.Modules) == 0 {
		return nil, fmt.Errorf("auth: rego predicate requires at least one module")
	}
	if config.Query == "" {
		config.Query = "data.guardchain.authz"
	}

	opts := []func(*rego.Rego){rego.Query(config.Query)}
	for name, src := range config.Modules {
		module, err := ast.ParseModuleWithOpts(name, src, ast.ParserOptions{RegoVersion: ast.RegoV1})
		if err != nil {
			return nil, fmt.Errorf("auth: parse rego module %q: %w", name, err)
		}
		opts = append(opts, rego.ParsedModule(module))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: prepare rego query: %w", err)
	}
	return &RegoPredicate{query: prepared}, nil
}

// Allow evaluates the policy for the request.
func (r *RegoPredicate) Allow(ctx context.Context, gc *guard.Context) error {
	results, err := r.query.Eval(ctx, rego.EvalInput(policyInput(gc)))
	if err != nil {
		return guard.NewInternalError("policy_error", "policy evaluation failed", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return deny("predicate_rejected", "denied by policy")
	}

	decision, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return guard.NewInternalError("policy_error", "policy returned a non-object decision",
			fmt.Errorf("unexpected result type %T", results[0].Expressions[0].Value))
	}
	if allow, _ := decision["allow"].(bool); allow {
		return nil
	}
	reason, _ := decision["reason"].(string)
	if reason == "" {
		reason = "denied by policy"
	}
	return deny("predicate_rejected", reason)
}

func policyInput(gc *guard.Context) map[string]any {
	input := map[string]any{}
	if p := gc.Principal; p != nil {
		input["principal"] = map[string]any{
			"id":          p.ID,
			"roles":       stringsToAny(p.Roles),
			"permissions": stringsToAny(p.Permissions),
			"claims":      p.Claims,
		}
	}
	if req := gc.Request; req != nil {
		params := make(map[string]any, len(req.Params))
		for k, v := range req.Params {
			params[k] = v
		}
		query := make(map[string]any, len(req.Query))
		for k, v := range req.Query {
			query[k] = stringsToAny(v)
		}
		input["request"] = map[string]any{
			"method": req.Method,
			"path":   req.Path,
			"params": params,
			"query":  query,
			"body":   req.Body,
		}
	}
	return input
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

var _ Predicate = (*RegoPredicate)(nil)
