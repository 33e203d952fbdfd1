package validate

import (
	"fmt"
	"net/textproto"
	"regexp"
	"sort"
)

type compiledField struct {
	*Field
	pattern *regexp.Regexp
	items   *compiledField
	object  *compiledObject
}

type compiledObject struct {
	strict bool
	names  []string
	fields map[string]*compiledField
}

func compileObject(path string, o *Object, canonical bool) (*compiledObject, error) {
	if o == nil {
		return nil, nil
	}
	co := &compiledObject{
		strict: o.Strict,
		fields: make(map[string]*compiledField, len(o.Fields)),
	}
	for name, f := range o.Fields {
		key := name
		if canonical {
			key = textproto.CanonicalMIMEHeaderKey(name)
		}
		cf, err := compileField(joinPath(path, key), f)
		if err != nil {
			return nil, err
		}
		co.fields[key] = cf
		co.names = append(co.names, key)
	}
	sort.Strings(co.names)
	return co, nil
}

func compileField(path string, f *Field) (*compiledField, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilField, path)
	}
	switch f.Type {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray, TypeAny:
	case "":
		return nil, fmt.Errorf("%w: %s has no type", ErrUnknownType, path)
	default:
		return nil, fmt.Errorf("%w: %s has type %q", ErrUnknownType, path, f.Type)
	}

	switch f.Format {
	case "", FormatEmail, FormatUUID, FormatURL, FormatDate, FormatDateTime:
	default:
		return nil, fmt.Errorf("%w: %s has format %q", ErrUnknownFormat, path, f.Format)
	}

	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return nil, fmt.Errorf("%w: %s min/max", ErrBadBounds, path)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return nil, fmt.Errorf("%w: %s min_length/max_length", ErrBadBounds, path)
	}
	if f.MinItems != nil && f.MaxItems != nil && *f.MinItems > *f.MaxItems {
		return nil, fmt.Errorf("%w: %s min_items/max_items", ErrBadBounds, path)
	}

	cf := &compiledField{Field: f}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPattern, path, err)
		}
		cf.pattern = re
	}
	if f.Items != nil {
		items, err := compileField(path+"[]", f.Items)
		if err != nil {
			return nil, err
		}
		cf.items = items
	}
	if f.Object != nil {
		obj, err := compileObject(path, f.Object, false)
		if err != nil {
			return nil, err
		}
		cf.object = obj
	}
	return cf, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
