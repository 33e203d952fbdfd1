package validate

// Type is the declared type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeAny     Type = "any"
)

// Format is a named string format.
type Format string

const (
	FormatEmail    Format = "email"
	FormatUUID     Format = "uuid"
	FormatURL      Format = "url"
	FormatDate     Format = "date"
	FormatDateTime Format = "date-time"
)

// Constraint names reported in guard.FieldError.
const (
	ConstraintRequired  = "required"
	ConstraintType      = "type"
	ConstraintMinLength = "min_length"
	ConstraintMaxLength = "max_length"
	ConstraintPattern   = "pattern"
	ConstraintFormat    = "format"
	ConstraintMin       = "min"
	ConstraintMax       = "max"
	ConstraintEnum      = "enum"
	ConstraintMinItems  = "min_items"
	ConstraintMaxItems  = "max_items"
	ConstraintUnknown   = "unknown_field"
)

// Schema declares the expected shape of each request section.
// Nil sections are not validated.
type Schema struct {
	Params  *Object
	Query   *Object
	Headers *Object
	Body    *Object
}

// Object declares a set of named fields.
type Object struct {
	Fields map[string]*Field

	// Strict rejects keys not declared in Fields.
	Strict bool
}

// Field declares the type, constraints and transforms for one value.
type Field struct {
	Type     Type
	Required bool

	// Default is substituted when the field is absent. It is validated
	// like any supplied value.
	Default any

	// Numeric bounds, inclusive.
	Min *float64
	Max *float64

	// String length bounds in runes.
	MinLength *int
	MaxLength *int

	Pattern string
	Format  Format
	Enum    []any

	// Items describes array elements.
	Items    *Field
	MinItems *int
	MaxItems *int

	// Object describes nested object fields.
	Object *Object

	// String transforms, applied before constraints.
	Trim      bool
	Lowercase bool
	Uppercase bool
}

// Float returns a pointer to f, for Min and Max.
func Float(f float64) *float64 {
	return &f
}

// Int returns a pointer to n, for length and item bounds.
func Int(n int) *int {
	return &n
}
