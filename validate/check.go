package validate

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jonwraymond/guardchain/guard"
)

// Integers are accepted in [-2^63, 2^63); larger floats would wrap on conversion.
const (
	minInt64      = float64(math.MinInt64)
	maxInt64Bound = -float64(math.MinInt64)
)

func (o *compiledObject) validate(prefix string, in map[string]any, coerce bool) (map[string]any, []guard.FieldError) {
	out := make(map[string]any, len(in))
	var errs []guard.FieldError

	for _, name := range o.names {
		val, present := in[name]
		nv, set, ferrs := o.fields[name].validate(joinPath(prefix, name), val, present, coerce)
		errs = append(errs, ferrs...)
		if set {
			out[name] = nv
		}
	}

	for _, key := range sortedKeys(in) {
		if _, declared := o.fields[key]; declared {
			continue
		}
		if o.strict {
			errs = append(errs, guard.FieldError{
				Path:       joinPath(prefix, key),
				Constraint: ConstraintUnknown,
				Message:    "is not allowed",
			})
			continue
		}
		out[key] = in[key]
	}
	return out, errs
}

// validate returns the normalized value, whether it should be set, and any
// violations.
func (f *compiledField) validate(path string, val any, present, coerce bool) (any, bool, []guard.FieldError) {
	if !present || val == nil {
		if f.Default == nil {
			if f.Required {
				return nil, false, []guard.FieldError{{Path: path, Constraint: ConstraintRequired, Message: "is required"}}
			}
			return nil, false, nil
		}
		val = f.Default
	}

	val = f.transform(val)

	nv, ok := f.coerceType(val, coerce)
	if !ok {
		return nil, false, []guard.FieldError{{
			Path:       path,
			Constraint: ConstraintType,
			Message:    "must be " + article(f.Type),
		}}
	}

	var errs []guard.FieldError
	switch v := nv.(type) {
	case string:
		errs = append(errs, f.checkString(path, v)...)
	case float64:
		errs = append(errs, f.checkNumber(path, v)...)
	case int64:
		errs = append(errs, f.checkNumber(path, float64(v))...)
	case []any:
		items, ierrs := f.checkArray(path, v, coerce)
		nv = items
		errs = append(errs, ierrs...)
	case map[string]any:
		if f.object != nil {
			obj, oerrs := f.object.validate(path, v, coerce)
			nv = obj
			errs = append(errs, oerrs...)
		}
	}

	if len(f.Enum) > 0 && !enumContains(f.Enum, nv) {
		errs = append(errs, guard.FieldError{
			Path:       path,
			Constraint: ConstraintEnum,
			Message:    "must be one of " + formatEnum(f.Enum),
		})
	}
	return nv, true, errs
}

func (f *compiledField) transform(val any) any {
	s, ok := val.(string)
	if !ok {
		return val
	}
	if f.Trim {
		s = strings.TrimSpace(s)
	}
	if f.Lowercase {
		s = strings.ToLower(s)
	}
	if f.Uppercase {
		s = strings.ToUpper(s)
	}
	return s
}

func (f *compiledField) coerceType(val any, coerce bool) (any, bool) {
	switch f.Type {
	case TypeAny:
		return val, true
	case TypeString:
		s, ok := val.(string)
		return s, ok
	case TypeBoolean:
		switch v := val.(type) {
		case bool:
			return v, true
		case string:
			if !coerce {
				return nil, false
			}
			b, err := strconv.ParseBool(v)
			return b, err == nil
		}
		return nil, false
	case TypeNumber:
		n, ok := toFloat(val, coerce)
		return n, ok
	case TypeInteger:
		if s, ok := val.(string); ok {
			if !coerce {
				return nil, false
			}
			n, err := strconv.ParseInt(s, 10, 64)
			return n, err == nil
		}
		n, ok := toFloat(val, false)
		if !ok || n != math.Trunc(n) || n < minInt64 || n >= maxInt64Bound {
			return nil, false
		}
		return int64(n), true
	case TypeArray:
		switch v := val.(type) {
		case []any:
			return v, true
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, true
		}
		return nil, false
	case TypeObject:
		m, ok := val.(map[string]any)
		return m, ok
	}
	return nil, false
}

func (f *compiledField) checkString(path, s string) []guard.FieldError {
	var errs []guard.FieldError
	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMinLength,
			Message: fmt.Sprintf("must be at least %d characters", *f.MinLength),
		})
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMaxLength,
			Message: fmt.Sprintf("must be at most %d characters", *f.MaxLength),
		})
	}
	if f.pattern != nil && !f.pattern.MatchString(s) {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintPattern,
			Message: "must match pattern " + f.Pattern,
		})
	}
	if f.Format != "" && !validFormat(f.Format, s) {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintFormat,
			Message: "must be a valid " + string(f.Format),
		})
	}
	return errs
}

func (f *compiledField) checkNumber(path string, n float64) []guard.FieldError {
	var errs []guard.FieldError
	if f.Min != nil && n < *f.Min {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMin,
			Message: "must be >= " + strconv.FormatFloat(*f.Min, 'f', -1, 64),
		})
	}
	if f.Max != nil && n > *f.Max {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMax,
			Message: "must be <= " + strconv.FormatFloat(*f.Max, 'f', -1, 64),
		})
	}
	return errs
}

func (f *compiledField) checkArray(path string, items []any, coerce bool) ([]any, []guard.FieldError) {
	var errs []guard.FieldError
	if f.MinItems != nil && len(items) < *f.MinItems {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMinItems,
			Message: fmt.Sprintf("must contain at least %d items", *f.MinItems),
		})
	}
	if f.MaxItems != nil && len(items) > *f.MaxItems {
		errs = append(errs, guard.FieldError{
			Path: path, Constraint: ConstraintMaxItems,
			Message: fmt.Sprintf("must contain at most %d items", *f.MaxItems),
		})
	}
	if f.items == nil {
		return items, errs
	}
	out := make([]any, len(items))
	for i, item := range items {
		ipath := fmt.Sprintf("%s[%d]", path, i)
		// Elements are always present; a null element still fails a required check.
		nv, _, ierrs := f.items.validate(ipath, item, item != nil, coerce)
		out[i] = nv
		errs = append(errs, ierrs...)
	}
	return out, errs
}

func validFormat(format Format, s string) bool {
	switch format {
	case FormatEmail:
		addr, err := mail.ParseAddress(s)
		return err == nil && addr.Address == s
	case FormatUUID:
		_, err := uuid.Parse(s)
		return err == nil
	case FormatURL:
		u, err := url.ParseRequestURI(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	case FormatDate:
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	case FormatDateTime:
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	}
	return true
}

func toFloat(val any, coerce bool) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if !coerce {
			return 0, false
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if ef, ok := toFloat(e, false); ok {
			if vf, ok := toFloat(v, false); ok && ef == vf {
				return true
			}
			continue
		}
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func article(t Type) string {
	switch t {
	case TypeInteger, TypeObject, TypeArray:
		return "an " + string(t)
	default:
		return "a " + string(t)
	}
}
