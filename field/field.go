// Package field implements the typed field descriptor and schema mapping
// used as resource and endpoint payload shapes, grounded on the field/
// schema conventions exercised throughout arterial-io/mesh's resource.py
// and standard/endpoints.py (the scheme library's Field/Structure contract
// as seen from its call sites, since scheme itself ships out of pack).
package field

import (
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind is the primitive shape of a Field's value.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindEnumeration
	KindSequence
	KindStructure
)

// Operator is one query-endpoint comparison suffix a field supports.
// Naming follows the teacher source's OperatorConstructor table.
type Operator string

const (
	OpEqual     Operator = "equal"
	OpIEqual    Operator = "iequal"
	OpNot       Operator = "not"
	OpINot      Operator = "inot"
	OpPrefix    Operator = "prefix"
	OpIPrefix   Operator = "iprefix"
	OpSuffix    Operator = "suffix"
	OpISuffix   Operator = "isuffix"
	OpContains  Operator = "contains"
	OpIContains Operator = "icontains"
	OpGT        Operator = "gt"
	OpGTE       Operator = "gte"
	OpLT        Operator = "lt"
	OpLTE       Operator = "lte"
	OpNull      Operator = "null"
	OpIn        Operator = "in"
	OpNotIn     Operator = "notin"
)

// Tristate distinguishes "unset" from an explicit true/false, needed for
// flags (oncreate, onput, onupdate) whose default behavior differs from
// both an explicit true and an explicit false.
type Tristate int

const (
	Unset Tristate = iota
	True
	False
)

// Field is an immutable-once-sealed typed descriptor. Name, cardinality
// flags, lifecycle flags, an optional operator set, and structural
// children (for KindSequence/KindStructure) describe both request and
// response schema shapes.
type Field struct {
	Name        string
	Kind        Kind
	Description string

	Required   bool
	Nonnull    bool
	Readonly   bool
	Deferred   bool
	Unique     bool
	Sortable   bool
	IsIdentifier bool

	OnCreate Tristate
	OnPut    Tristate
	OnUpdate Tristate
	// Returned lists the standard endpoint names (space-delimited, as in
	// the source) that should include this field in their response even
	// when it would otherwise be excluded.
	Returned string

	Operators []Operator

	// Item is the element Field for KindSequence.
	Item *Field
	// Children is the attribute map for KindStructure.
	Children Schema
	// Values is the allowed token set for KindEnumeration.
	Values []string

	Default any
	Minimum *float64

	sealed bool
}

// Seal freezes f; subsequent Clone calls are the only way to derive
// variants.
func (f Field) Seal() Field { f.sealed = true; return f }

// Clone returns a copy of f with named overrides applied by fn.
func (f Field) Clone(fn func(*Field)) Field {
	clone := f
	clone.sealed = false
	if fn != nil {
		fn(&clone)
	}
	return clone
}

// IncludesReturned reports whether endpoint is listed in f.Returned.
func (f Field) IncludesReturned(endpoint string) bool {
	if f.Returned == "" {
		return false
	}
	for _, tok := range strings.Fields(f.Returned) {
		if tok == endpoint {
			return true
		}
	}
	return false
}

var kindName = map[Kind]string{
	KindText: "text", KindInteger: "integer", KindFloat: "float", KindBoolean: "boolean",
	KindEnumeration: "enumeration", KindSequence: "sequence", KindStructure: "structure",
}

var nameKind map[string]Kind

func init() {
	nameKind = make(map[string]Kind, len(kindName))
	for k, name := range kindName {
		nameKind[name] = k
	}
}

// Describe returns a serializable description of f, mirroring
// scheme.fields.Field.describe. When verbose is false, attributes holding
// their zero value are omitted. omissions names attributes that, wherever
// they occur in f's own nested item/structure fields, are replaced by a
// bare field carrying only __subject__ and name, per spec §9's resolution
// of describe's omissions parameter.
func (f Field) Describe(verbose bool, omissions []string) map[string]any {
	d := map[string]any{"__subject__": "field", "name": f.Name, "type": kindName[f.Kind]}
	if f.Description != "" || verbose {
		d["description"] = f.Description
	}
	if f.Required || verbose {
		d["required"] = f.Required
	}
	if f.Nonnull || verbose {
		d["nonnull"] = f.Nonnull
	}
	if f.Readonly || verbose {
		d["readonly"] = f.Readonly
	}
	if f.Deferred || verbose {
		d["deferred"] = f.Deferred
	}
	if f.Unique || verbose {
		d["unique"] = f.Unique
	}
	if f.Sortable || verbose {
		d["sortable"] = f.Sortable
	}
	if len(f.Values) > 0 {
		d["values"] = f.Values
	}
	if f.Default != nil {
		d["default"] = f.Default
	}
	if f.Minimum != nil {
		d["minimum"] = *f.Minimum
	}
	if f.Item != nil {
		d["item"] = describeField(*f.Item, verbose, omissions)
	}
	if f.Children != nil {
		children := make(map[string]any, len(f.Children))
		for name, child := range f.Children {
			children[name] = describeField(child, verbose, omissions)
		}
		d["structure"] = children
	}
	return d
}

// bareDescribe is the "shares only the name" substitute spec §9 calls for
// when an attribute name is listed in omissions.
func bareDescribe(name string) map[string]any {
	return map[string]any{"__subject__": "field", "name": name}
}

// describeField returns f's bare description if its name is omitted,
// otherwise its full Describe.
func describeField(f Field, verbose bool, omissions []string) map[string]any {
	if omitted(f.Name, omissions) {
		return bareDescribe(f.Name)
	}
	return f.Describe(verbose, omissions)
}

func omitted(name string, omissions []string) bool {
	for _, o := range omissions {
		if o == name {
			return true
		}
	}
	return false
}

// Describe describes every field in s, keyed by attribute name, replacing
// any field named in omissions with a bare field sharing only its name.
func (s Schema) Describe(verbose bool, omissions []string) map[string]any {
	out := make(map[string]any, len(s))
	for name, f := range s {
		out[name] = describeField(f, verbose, omissions)
	}
	return out
}

// Schema is a named mapping from attribute name to Field, used as both
// request and response payload shape.
type Schema map[string]Field

// Clone returns a shallow copy of s.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the schema's attribute names, sorted.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FilterReadonly returns the subset of s whose Readonly flag equals want.
func (s Schema) FilterReadonly(want bool) Schema {
	out := make(Schema)
	for name, f := range s {
		if f.Readonly == want {
			out[name] = f
		}
	}
	return out
}

// Identifier returns the schema's identifier field, if any, by convention
// named "id" unless a Field is explicitly flagged IsIdentifier.
func (s Schema) Identifier() (Field, bool) {
	for _, f := range s {
		if f.IsIdentifier {
			return f, true
		}
	}
	if f, ok := s["id"]; ok {
		return f, true
	}
	return Field{}, false
}

// Validate runs ozzo-validation rules dynamically assembled from f's flags
// against value, used by resource construction to check composite-key and
// required-field shape at the point a payload enters the pipeline.
func (f Field) Validate(value any) error {
	var rules []validation.Rule
	if f.Required {
		rules = append(rules, validation.Required)
	}
	if f.Nonnull {
		rules = append(rules, validation.NotNil)
	}
	if len(f.Values) > 0 {
		allowed := make([]any, len(f.Values))
		for i, v := range f.Values {
			allowed[i] = v
		}
		rules = append(rules, validation.In(allowed...))
	}
	if f.Minimum != nil {
		rules = append(rules, validation.Min(*f.Minimum))
	}
	if err := validation.Validate(value, rules...); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	return nil
}

// Reconstruct rebuilds a Field from the map Describe(true, nil) produces,
// the inverse direction spec §4.2 names alongside describe and spec §8
// requires to round-trip (reconstruct(describe(f)) ≡ f for a verbose,
// non-omitted description). A bare description (only __subject__/name, as
// produced for an omitted attribute) reconstructs to a Field holding just
// that name, since the omitted shape carries nothing else to recover.
func Reconstruct(d map[string]any) (Field, error) {
	name, _ := d["name"].(string)
	typeName, hasType := d["type"].(string)
	if !hasType {
		return Field{Name: name}, nil
	}
	kind, ok := nameKind[typeName]
	if !ok {
		return Field{}, fmt.Errorf("field: unknown type %q", typeName)
	}

	f := Field{Name: name, Kind: kind}
	f.Description, _ = d["description"].(string)
	f.Required, _ = d["required"].(bool)
	f.Nonnull, _ = d["nonnull"].(bool)
	f.Readonly, _ = d["readonly"].(bool)
	f.Deferred, _ = d["deferred"].(bool)
	f.Unique, _ = d["unique"].(bool)
	f.Sortable, _ = d["sortable"].(bool)

	if v, ok := d["values"]; ok {
		f.Values = toStrings(v)
	}
	if v, ok := d["default"]; ok {
		f.Default = v
	}
	if v, ok := d["minimum"]; ok {
		if m, ok := v.(float64); ok {
			f.Minimum = &m
		}
	}
	if v, ok := d["item"].(map[string]any); ok {
		item, err := Reconstruct(v)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: item: %w", name, err)
		}
		f.Item = &item
	}
	if v, ok := d["structure"].(map[string]any); ok {
		children, err := ReconstructSchema(v)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: structure: %w", name, err)
		}
		f.Children = children
	}
	return f, nil
}

// ReconstructSchema rebuilds a Schema from the map Schema.Describe produces.
func ReconstructSchema(d map[string]any) (Schema, error) {
	out := make(Schema, len(d))
	for name, raw := range d {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field: attribute %q has a malformed description", name)
		}
		f, err := Reconstruct(m)
		if err != nil {
			return nil, err
		}
		out[name] = f
	}
	return out, nil
}

// toStrings coerces a decoded-JSON/YAML/msgpack slice into []string,
// tolerating both []string (native Go callers) and []any (values decoded
// off the wire).
func toStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
