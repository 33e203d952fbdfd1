package validate

import (
	"context"
	"fmt"
	"maps"
	"net/textproto"
	"slices"
	"strconv"

	"github.com/jonwraymond/guardchain/guard"
)

// PayloadKey is the context bag key holding the normalized Payload.
const PayloadKey = "validate.payload"

// Payload is the normalized, typed view of a validated request.
type Payload struct {
	Params  map[string]any
	Query   map[string]any
	Headers map[string]any
	Body    any
}

// Validator checks requests against a compiled Schema.
//
// Contract:
// - Concurrency: a Validator is immutable and safe for concurrent use.
// - Errors: Validate never stops at the first violation.
type Validator struct {
	params  *compiledObject
	query   *compiledObject
	headers *compiledObject
	body    *compiledObject
}

// Compile checks schema and precompiles its patterns.
func Compile(schema Schema) (*Validator, error) {
	var (
		v   Validator
		err error
	)
	if v.params, err = compileObject("params", schema.Params, false); err != nil {
		return nil, err
	}
	if v.query, err = compileObject("query", schema.Query, false); err != nil {
		return nil, err
	}
	if v.headers, err = compileObject("headers", schema.Headers, true); err != nil {
		return nil, err
	}
	if v.body, err = compileObject("body", schema.Body, false); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks req and returns the normalized payload, or every violation.
// req is not modified.
func (v *Validator) Validate(req *guard.Request) (Payload, []guard.FieldError) {
	var (
		p    Payload
		errs []guard.FieldError
	)

	if v.params != nil {
		in := make(map[string]any, len(req.Params))
		for k, val := range req.Params {
			in[k] = val
		}
		out, ferrs := v.params.validate("params", in, true)
		p.Params = out
		errs = append(errs, ferrs...)
	}

	if v.query != nil {
		out, ferrs := v.query.validate("query", multiValues(req.Query, v.query, false), true)
		p.Query = out
		errs = append(errs, ferrs...)
	}

	if v.headers != nil {
		out, ferrs := v.headers.validate("headers", multiValues(req.Headers, v.headers, true), true)
		p.Headers = out
		errs = append(errs, ferrs...)
	}

	if v.body != nil {
		switch body := req.Body.(type) {
		case nil:
			out, ferrs := v.body.validate("body", map[string]any{}, false)
			p.Body = out
			errs = append(errs, ferrs...)
		case map[string]any:
			out, ferrs := v.body.validate("body", body, false)
			p.Body = out
			errs = append(errs, ferrs...)
		default:
			errs = append(errs, guard.FieldError{Path: "body", Constraint: ConstraintType, Message: "must be an object"})
		}
	} else {
		p.Body = req.Body
	}

	return p, errs
}

// multiValues flattens a multi-valued map: array fields keep every value,
// scalar fields take the first. Undeclared and any-typed keys keep every
// value when there is more than one.
func multiValues(src map[string][]string, o *compiledObject, canonical bool) map[string]any {
	in := make(map[string]any, len(src))
	for k, vals := range src {
		key := k
		if canonical {
			key = textproto.CanonicalMIMEHeaderKey(k)
		}
		f, declared := o.fields[key]
		switch {
		case declared && f.Type == TypeArray:
			in[key] = slices.Clone(vals)
		case (!declared || f.Type == TypeAny) && len(vals) > 1:
			in[key] = slices.Clone(vals)
		case len(vals) > 0:
			in[key] = vals[0]
		}
	}
	return in
}

// Guard validates requests in a Chain.
type Guard struct {
	validator *Validator
	name      string
}

// New compiles schema into a Guard.
func New(schema Schema) (*Guard, error) {
	v, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	return &Guard{validator: v, name: "validator"}, nil
}

// MustNew is New that panics on an invalid schema.
func MustNew(schema Schema) *Guard {
	g, err := New(schema)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns "validator".
func (g *Guard) Name() string {
	return g.name
}

// Attempt validates the request and, on success, writes back the normalized
// sections.
func (g *Guard) Attempt(_ context.Context, gc *guard.Context) error {
	p, errs := g.validator.Validate(gc.Request)
	if len(errs) > 0 {
		return guard.NewValidationError(errs)
	}

	req := gc.Request
	if p.Params != nil {
		params := make(map[string]string, len(p.Params))
		for k, val := range p.Params {
			params[k] = formatScalar(val)
		}
		req.Params = params
	}
	if p.Query != nil {
		req.Query = toMulti(p.Query, nil)
	}
	if p.Headers != nil {
		req.Headers = toMulti(p.Headers, req.Headers)
	}
	req.Body = p.Body

	gc.Set(PayloadKey, p)
	return nil
}

// PayloadFrom returns the payload stored by the validator guard.
func PayloadFrom(gc *guard.Context) (Payload, bool) {
	v, ok := gc.Get(PayloadKey)
	if !ok {
		return Payload{}, false
	}
	p, ok := v.(Payload)
	return p, ok
}

func toMulti(src map[string]any, base map[string][]string) map[string][]string {
	out := make(map[string][]string, len(src)+len(base))
	maps.Copy(out, base)
	for k, val := range src {
		switch items := val.(type) {
		case []string:
			out[k] = slices.Clone(items)
		case []any:
			vals := make([]string, len(items))
			for i, item := range items {
				vals[i] = formatScalar(item)
			}
			out[k] = vals
		default:
			out[k] = []string{formatScalar(val)}
		}
	}
	return out
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

var _ guard.Guard = (*Guard)(nil)
