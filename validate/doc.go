// Package validate provides a declarative schema guard for request payloads.
//
// A Schema describes the route parameters, query string, headers and body of
// a request. Validation is exhaustive: every violation is collected, each
// with a path such as "body.tags[2]" or "query.page", and reported as a
// single validation error. On success the normalized payload (trimmed,
// case-folded, defaulted and coerced) replaces the request's sections.
//
// Route parameters, query values and headers arrive as strings and are
// coerced to the declared scalar type. Body values are checked strictly.
// Integers are normalized to int64.
//
//	v, err := validate.New(validate.Schema{
//	    Body: &validate.Object{Fields: map[string]*validate.Field{
//	        "email": {Type: validate.TypeString, Required: true, Format: validate.FormatEmail, Trim: true, Lowercase: true},
//	        "age":   {Type: validate.TypeInteger, Min: validate.Float(0)},
//	    }},
//	})
package validate
