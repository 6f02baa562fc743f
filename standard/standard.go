// Package standard implements the six standard endpoint constructors
// (create, delete, get, put, query, update) whose request/response
// schemas are derived purely from a resource's schema and field flags, per
// spec §4.2's "Standard-endpoint synthesis" and arterial-io/mesh's
// standard/endpoints.py. It imports both resource and endpoint, which keeps
// resource itself free of a dependency on these concrete constructors.
package standard

import (
	"fmt"
	"sort"

	"github.com/go-mizu/reef/endpoint"
	"github.com/go-mizu/reef/field"
	"github.com/go-mizu/reef/resource"
	"github.com/go-mizu/reef/status"
)

// DefaultEndpoints mirrors the teacher's DEFAULT_ENDPOINTS.
var DefaultEndpoints = []string{"create", "delete", "get", "query", "update"}

// ValidatedEndpoints mirrors the teacher's VALIDATED_ENDPOINTS.
var ValidatedEndpoints = []string{"create", "put", "update"}

// Register installs all six standard constructors on cfg, matching the
// teacher's STANDARD_ENDPOINTS map.
func Register(cfg *resource.Configuration) {
	cfg.StandardEndpoints["create"] = createConstructor{}
	cfg.StandardEndpoints["delete"] = deleteConstructor{}
	cfg.StandardEndpoints["get"] = getConstructor{}
	cfg.StandardEndpoints["put"] = putConstructor{}
	cfg.StandardEndpoints["query"] = queryConstructor{}
	cfg.StandardEndpoints["update"] = updateConstructor{}
	if cfg.DefaultEndpoints == nil {
		cfg.DefaultEndpoints = DefaultEndpoints
	}
	if cfg.ValidatedEndpoints == nil {
		cfg.ValidatedEndpoints = ValidatedEndpoints
	}
}

func cloneField(f field.Field, name string) field.Field {
	return f.Clone(func(c *field.Field) {
		c.Name = name
		c.Nonnull = true
		c.Default = nil
		c.Required = false
		c.Readonly = false
		c.Deferred = false
		c.Sortable = false
		c.Operators = nil
	})
}

func fieldsField(fields field.Schema, name string, includeIdentifier bool, description string) field.Field {
	tokens := make([]string, 0, len(fields))
	for n, f := range fields {
		if includeIdentifier || !f.IsIdentifier {
			tokens = append(tokens, n)
		}
	}
	sort.Strings(tokens)
	return field.Field{
		Name:        name,
		Kind:        field.KindSequence,
		Description: description,
		Unique:      true,
		Item:        &field.Field{Kind: field.KindEnumeration, Values: tokens, Nonnull: true},
	}
}

func excludeField(fields field.Schema) field.Field {
	return fieldsField(fields, "exclude", false, "Fields which should not be returned for this request.")
}

func includeField(fields field.Schema) field.Field {
	return fieldsField(fields, "include", true, "Fields which should be returned for this request.")
}

func responsesFor(decl *endpoint.Declaration, validSchema field.Schema) map[status.Status]endpoint.Response {
	valid := []status.Status{status.OK}
	invalid := []status.Status{status.Invalid}
	if decl != nil {
		if len(decl.ValidResponses) > 0 {
			valid = decl.ValidResponses
		}
		if len(decl.InvalidResponses) > 0 {
			invalid = decl.InvalidResponses
		}
	}
	responses := map[status.Status]endpoint.Response{}
	for _, s := range valid {
		sc := validSchema
		responses[s] = endpoint.Response{Status: s, Schema: &sc}
	}
	for _, s := range invalid {
		responses[s] = endpoint.Response{Status: s}
	}
	return responses
}

func constructReturning(r *resource.Resource) field.Field {
	names := r.Schema.Names()
	return field.Field{Kind: field.KindSequence, Item: &field.Field{Kind: field.KindEnumeration, Values: names, Nonnull: true}}
}

func filterSchemaForResponse(r *resource.Resource) field.Schema {
	out := field.Schema{}
	idName := r.IDField.Name
	for name, f := range r.Schema {
		switch {
		case name == idName:
			out[name] = f.Clone(func(c *field.Field) { c.Required = true })
		case f.Required:
			out[name] = f.Clone(func(c *field.Field) { c.Required = false })
		default:
			out[name] = f
		}
	}
	return out
}

func isReturned(f field.Field, endpointName string) bool {
	return f.IncludesReturned(endpointName)
}

func supportsReturning(r *resource.Resource, decl *endpoint.Declaration) (bool, error) {
	if decl == nil || !decl.SupportReturning {
		return false, nil
	}
	if _, ok := r.Schema["returning"]; ok {
		return false, fmt.Errorf("standard: resource %q cannot support returning, schema already declares 'returning'", r.Name)
	}
	return true, nil
}

type createConstructor struct{}

func (createConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	schema := field.Schema{}
	for name, f := range r.Schema.FilterReadonly(false) {
		switch {
		case f.IsIdentifier:
			if f.OnCreate == field.True {
				schema[name] = f.Clone(func(c *field.Field) {})
			}
		case f.OnCreate != field.False:
			schema[name] = f
		}
	}

	supportReturning, _ := supportsReturning(r, decl)
	if supportReturning {
		schema["returning"] = constructReturning(r)
	}

	response := field.Schema{}
	for name, f := range r.Schema {
		switch {
		case f.IsIdentifier || isReturned(f, "create"):
			response[name] = f.Clone(func(c *field.Field) { c.Required = true })
		case supportReturning:
			response[name] = f.Clone(func(c *field.Field) { c.Required = false })
		}
	}

	return endpoint.Endpoint{
		Method:          "POST",
		Schema:          &schema,
		Responses:       responsesFor(decl, response),
		Title:           fmt.Sprintf("Creating a new %s", r.Title),
		AutoConstructed: true,
	}
}

type deleteConstructor struct{}

func (deleteConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	response := field.Schema{r.IDField.Name: r.IDField.Clone(func(c *field.Field) { c.Required = true })}
	return endpoint.Endpoint{
		Method:          "DELETE",
		Responses:       responsesFor(decl, response),
		Specific:        true,
		SubjectRequired: true,
		Title:           fmt.Sprintf("Deleting a specific %s", r.Title),
		AutoConstructed: true,
	}
}

type getConstructor struct{}

func (getConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	fields := filterSchemaForResponse(r)
	schema := field.Schema{
		"exclude": excludeField(fields),
		"fields":  fieldsField(fields, "fields", true, "The exact fields which should be returned in this request."),
		"include": includeField(fields),
	}
	return endpoint.Endpoint{
		Method:          "GET",
		Schema:          &schema,
		Responses:       responsesFor(decl, fields),
		Specific:        true,
		SubjectRequired: true,
		Title:           fmt.Sprintf("Getting a specific %s", r.Title),
		AutoConstructed: true,
	}
}

type putConstructor struct{}

func (putConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	schema := field.Schema{}
	for name, f := range r.Schema.FilterReadonly(false) {
		if !f.IsIdentifier && f.OnPut != field.False {
			schema[name] = f
		}
	}

	supportReturning, _ := supportsReturning(r, decl)
	if supportReturning {
		schema["returning"] = constructReturning(r)
	}

	response := field.Schema{}
	for name, f := range r.Schema {
		switch {
		case f.IsIdentifier || isReturned(f, "put"):
			response[name] = f.Clone(func(c *field.Field) { c.Required = true })
		case supportReturning:
			response[name] = f.Clone(func(c *field.Field) { c.Required = false })
		}
	}

	return endpoint.Endpoint{
		Method:          "PUT",
		Schema:          &schema,
		Responses:       responsesFor(decl, response),
		Specific:        true,
		SubjectRequired: false,
		Title:           fmt.Sprintf("Putting a specific %s", r.Title),
		AutoConstructed: true,
	}
}

type queryConstructor struct{}

func (queryConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	fields := filterSchemaForResponse(r)
	schema := field.Schema{
		"exclude": excludeField(fields),
		"fields":  fieldsField(fields, "fields", true, "The exact fields which should be returned in this request."),
		"include": includeField(fields),
		"limit":   field.Field{Name: "limit", Kind: field.KindInteger, Description: "The maximum number of resources to return."},
		"offset":  field.Field{Name: "offset", Kind: field.KindInteger, Default: 0, Description: "The offset of the first resource to return."},
		"total":   field.Field{Name: "total", Kind: field.KindBoolean, Default: false, Nonnull: true, Description: "If true, only return the total for this query."},
	}

	var sortTokens []string
	for name, f := range fields {
		if f.Sortable {
			sortTokens = append(sortTokens, name, name+"+", name+"-")
		}
	}
	if len(sortTokens) > 0 {
		sort.Strings(sortTokens)
		schema["sort"] = field.Field{
			Name: "sort", Kind: field.KindSequence,
			Item:        &field.Field{Kind: field.KindEnumeration, Values: sortTokens, Nonnull: true},
			Description: "The sort order for this query.",
		}
	}

	operators := field.Schema{}
	for _, f := range fields {
		if len(f.Operators) > 0 {
			constructOperators(operators, f)
		}
	}
	if decl != nil {
		for name, f := range decl.Operators {
			operators[name] = f
		}
	}
	if len(operators) > 0 {
		schema["query"] = field.Field{
			Name: "query", Kind: field.KindStructure, Children: operators,
			Description: "The query by which to filter resources.",
		}
	}

	response := field.Schema{
		"total": {Name: "total", Kind: field.KindInteger, Nonnull: true},
		"resources": {
			Name: "resources", Kind: field.KindSequence, Nonnull: true,
			Item: &field.Field{Kind: field.KindStructure, Children: fields},
		},
	}

	return endpoint.Endpoint{
		Method:          "GET",
		Schema:          &schema,
		Responses:       responsesFor(decl, response),
		Title:           fmt.Sprintf("Querying %ss", r.Title),
		AutoConstructed: true,
	}
}

// constructOperators expands a field's declared operator set into the
// query schema, mirroring OperatorConstructor.construct.
func constructOperators(operators field.Schema, f field.Field) {
	for _, op := range f.Operators {
		switch op {
		case field.OpEqual:
			operators[f.Name] = cloneField(f, f.Name)
		case field.OpIn:
			name := f.Name + "__in"
			operators[name] = field.Field{Name: name, Kind: field.KindSequence, Nonnull: true, Item: &f}
		case field.OpNotIn:
			name := f.Name + "__notin"
			operators[name] = field.Field{Name: name, Kind: field.KindSequence, Nonnull: true, Item: &f}
		case field.OpNull:
			name := f.Name + "__null"
			operators[name] = field.Field{Name: name, Kind: field.KindBoolean, Nonnull: true}
		default:
			name := fmt.Sprintf("%s__%s", f.Name, op)
			operators[name] = cloneField(f, name)
		}
	}
}

type updateConstructor struct{}

func (updateConstructor) Construct(r *resource.Resource, decl *endpoint.Declaration) endpoint.Endpoint {
	schema := field.Schema{}
	for name, f := range r.Schema.FilterReadonly(false) {
		if !f.IsIdentifier && f.OnUpdate != field.False {
			if f.Required {
				f = f.Clone(func(c *field.Field) { c.Required = false })
			}
			schema[name] = f
		}
	}

	supportReturning, _ := supportsReturning(r, decl)
	if supportReturning {
		schema["returning"] = constructReturning(r)
	}

	response := field.Schema{}
	for name, f := range r.Schema {
		switch {
		case f.IsIdentifier || isReturned(f, "update"):
			response[name] = f.Clone(func(c *field.Field) { c.Required = true })
		case supportReturning:
			response[name] = f.Clone(func(c *field.Field) { c.Required = false })
		}
	}

	return endpoint.Endpoint{
		Method:    "POST",
		Schema:    &schema,
		Responses: responsesFor(decl, response),
		// The teacher source passes `specfic=True` here — a typo swallowed
		// by its constructor's **params and silently ignored, leaving the
		// update endpoint non-specific despite operating on an existing
		// subject. Corrected here: update always targets a specific subject.
		Specific:        true,
		SubjectRequired: true,
		Title:           fmt.Sprintf("Updating a specific %s", r.Title),
		AutoConstructed: true,
	}
}
