package proto

// Parsed representation of one .proto source unit. Collections preserve
// source order throughout; nothing here is mutated after parsing.

// Syntax identifies the protobuf language dialect of a file.
type Syntax string

const (
	Proto2 Syntax = "proto2"
	Proto3 Syntax = "proto3"
)

// File is the root of one parsed .proto source unit.
type File struct {
	Syntax   Syntax
	Package  string // dotted name, empty when the file declares none
	Imports  []Import
	Options  []Option
	Services []*Service
	Messages []*Message
	Enums    []*Enum
}

// ImportKind distinguishes plain, public, and weak imports.
type ImportKind string

const (
	ImportNormal ImportKind = "normal"
	ImportPublic ImportKind = "public"
	ImportWeak   ImportKind = "weak"
)

// Import is a single import statement.
type Import struct {
	Kind ImportKind
	Path string
}

// Service is a service block with its rpc methods.
type Service struct {
	Name     string
	Methods  []*RPC
	Options  []Option
	Comments []string
}

// RPC is one rpc declaration inside a service. When the method carries a
// google.api.http option it is decoded into HTTPRule at parse time instead
// of being kept in Options.
type RPC struct {
	Name     string
	Input    TypeReference
	Output   TypeReference
	Options  []Option
	Comments []string
	HTTPRule *HTTPRule
}

// TypeReference names a message or enum type, or a scalar keyword when used
// as a field type.
type TypeReference struct {
	Name    string
	Package string
	Stream  bool
}

// FullyQualified returns "package.name" when a package is known, else the
// bare name.
func (t TypeReference) FullyQualified() string {
	if t.Package != "" {
		return t.Package + "." + t.Name
	}
	return t.Name
}

var scalarTypes = map[string]struct{}{
	"double": {}, "float": {},
	"int32": {}, "int64": {}, "uint32": {}, "uint64": {},
	"sint32": {}, "sint64": {},
	"fixed32": {}, "fixed64": {}, "sfixed32": {}, "sfixed64": {},
	"bool": {}, "string": {}, "bytes": {},
}

// IsScalar reports whether the reference names one of the fifteen proto
// scalar types.
func (t TypeReference) IsScalar() bool {
	_, ok := scalarTypes[t.Name]
	return ok && t.Package == ""
}

var wellKnownTypes = map[string]struct{}{
	"google.protobuf.Timestamp": {},
	"google.protobuf.Duration":  {},
	"google.protobuf.Empty":     {},
	"google.protobuf.Any":       {},
	"google.protobuf.Struct":    {},
	"google.protobuf.Value":     {},
	"google.protobuf.ListValue": {},
	"google.protobuf.NullValue": {},
}

// IsWellKnown reports whether the reference names one of the google.protobuf
// well-known types.
func (t TypeReference) IsWellKnown() bool {
	_, ok := wellKnownTypes[t.FullyQualified()]
	return ok
}

// Message is a message block. Nested messages and enums are owned
// exclusively by their parent, forming a tree.
type Message struct {
	Name     string
	Fields   []*Field
	Nested   []*Message
	Enums    []*Enum
	Options  []Option
	Comments []string
}

// FieldLabel is the proto2 field cardinality label; proto3 fields default
// to optional.
type FieldLabel string

const (
	LabelOptional FieldLabel = "optional"
	LabelRequired FieldLabel = "required"
	LabelRepeated FieldLabel = "repeated"
)

// Field is a single message field. Type names either a scalar keyword
// (Type.IsScalar()) or a message/enum reference.
type Field struct {
	Name     string
	Type     TypeReference
	Number   uint32
	Label    FieldLabel
	Options  []Option
	Comments []string
}

// Enum is an enum block.
type Enum struct {
	Name     string
	Values   []EnumValue
	Options  []Option
	Comments []string
}

// EnumValue is one enum value declaration. Number is signed so negative
// sentinel values survive.
type EnumValue struct {
	Name     string
	Number   int32
	Options  []Option
	Comments []string
}

// Option is a single option statement or bracketed field option. Name keeps
// whatever form the source used after stripping extension parens, e.g.
// "google.api.http" or "validate.rules".
type Option struct {
	Name  string
	Value OptionValue
}

// OptionValue is the closed set of shapes an option constant can take.
// Annotation decoding switches exhaustively over these.
type OptionValue interface {
	optionValue()
}

// StringValue is a quoted string constant.
type StringValue struct{ Value string }

// NumberValue is a numeric constant, always carried as float64.
type NumberValue struct{ Value float64 }

// BoolValue is a true/false constant.
type BoolValue struct{ Value bool }

// IdentifierValue is a bare identifier constant such as an enum value name.
type IdentifierValue struct{ Value string }

// MessageValue is a brace-delimited { key: value ... } literal. Entries
// preserve declaration order; nesting is arbitrary.
type MessageValue struct {
	Entries []MessageEntry
}

// MessageEntry is one key/value pair in a MessageValue.
type MessageEntry struct {
	Name  string
	Value OptionValue
}

func (StringValue) optionValue()     {}
func (NumberValue) optionValue()     {}
func (BoolValue) optionValue()       {}
func (IdentifierValue) optionValue() {}
func (MessageValue) optionValue()    {}

// Get returns the value for the first entry named name.
func (m MessageValue) Get(name string) (OptionValue, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// HTTPRule is the decoded form of a google.api.http method option.
type HTTPRule struct {
	// Verb is the annotation key that carried the path: get, post, put,
	// patch, or delete. Custom verbs only appear when a caller builds the
	// rule directly.
	Verb               string
	Path               string
	Body               string // "" when the annotation has no body field
	AdditionalBindings []HTTPBinding
}

// HTTPBinding is one additional_bindings entry of a google.api.http option.
type HTTPBinding struct {
	Verb string
	Path string
	Body string
}
