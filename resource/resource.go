// Package resource implements the declarative Resource/Controller
// meta-model: schema composition, inheritance, validator registration, and
// standard-endpoint synthesis from resource shape. It replaces the
// teacher source's runtime metaclass composition (ResourceMeta/
// ControllerMeta) with an explicit two-phase Builder, per spec §9's
// "Replacing dynamic metaclass composition."
package resource

import (
	"fmt"
	"sort"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/endpoint"
	"github.com/go-mizu/reef/field"
)

// EndpointConstructor synthesizes a standard endpoint definition from a
// resource's shape. Concrete constructors (create/delete/get/put/query/
// update) live in package standard, which depends on both resource and
// endpoint; this interface is the seam that keeps resource itself free of
// that dependency.
type EndpointConstructor interface {
	Construct(r *Resource, decl *endpoint.Declaration) endpoint.Endpoint
}

// Configuration is the set of standard endpoints and identifier-field
// conventions shared by a family of resources (GLOSSARY: Configuration).
type Configuration struct {
	StandardEndpoints  map[string]EndpointConstructor
	DefaultEndpoints   []string
	ValidatedEndpoints []string
	IDField            field.Field
}

// NewConfiguration returns a Configuration with a default integer "id"
// identifier field, matching the teacher's Configuration.__init__ default.
func NewConfiguration() *Configuration {
	return &Configuration{
		StandardEndpoints: map[string]EndpointConstructor{},
		IDField:           field.Field{Name: "id", Kind: field.KindInteger, Nonnull: true, IsIdentifier: true},
	}
}

// Resource is a named, versioned entity schema plus its operations.
type Resource struct {
	Configuration *Configuration

	Name         string
	Major        int
	Abstract     bool
	CompositeKey []string

	Schema     field.Schema
	Endpoints  map[string]endpoint.Endpoint
	Validators map[string]endpoint.Validator

	IDField field.Field
	Title   string
}

// filterSchema mirrors Resource.filter_schema: returns the subset of the
// schema whose Readonly flag equals readonly.
func (r *Resource) filterSchema(readonly bool) field.Schema {
	return r.Schema.FilterReadonly(readonly)
}

// Declaration is the builder-pattern input for constructing a Resource,
// replacing the teacher's class-body namespace.
type Declaration struct {
	Name         string
	Major        int
	Abstract     bool
	CompositeKey []string

	// Base is the concrete base to extend, or nil for a root resource.
	Base *Resource

	// Schema adds or (with a nil Field via Removed) deletes attributes
	// relative to Base's schema.
	Schema  field.Schema
	Removed []string

	// Endpoints lists the standard endpoints to synthesize, replacing
	// Configuration.DefaultEndpoints; nil means "use the defaults."
	Endpoints []string

	// ExplicitEndpoints installs endpoints verbatim (not synthesized),
	// e.g. a hand-written search endpoint.
	ExplicitEndpoints map[string]endpoint.Endpoint

	Validators []namedValidator
}

type namedValidator struct {
	Name      string
	Validator endpoint.Validator
}

// WithValidator registers a validator under name, mirroring the `validator`
// decorator's attachment of a classmethod to Resource.validators.
func (d *Declaration) WithValidator(name string, v endpoint.Validator) {
	d.Validators = append(d.Validators, namedValidator{Name: name, Validator: v})
}

// Build runs the two-phase construction described in spec §4.2: a
// collection phase that merges schema/endpoints/validators from Base, and
// a resolution phase that rejects illegal shapes, installs the identifier
// field, synthesizes standard endpoints, and attaches validators.
func Build(cfg *Configuration, decl Declaration) (*Resource, error) {
	if decl.Abstract && decl.Base != nil && decl.Base.Name != "" {
		return nil, fmt.Errorf("resource: abstract resource %q may only inherit from an abstract base", decl.Name)
	}
	if !decl.Abstract && decl.Name != "" && decl.Major < 1 {
		return nil, fmt.Errorf("resource: resource %q declares an invalid version %d", decl.Name, decl.Major)
	}

	r := &Resource{
		Configuration: cfg,
		Name:          decl.Name,
		Major:         decl.Major,
		Abstract:      decl.Abstract,
		CompositeKey:  decl.CompositeKey,
		Schema:        field.Schema{},
		Endpoints:     map[string]endpoint.Endpoint{},
		Validators:    map[string]endpoint.Validator{},
	}

	// Collection phase: merge in the concrete base's schema/endpoints/
	// validators.
	inherited := map[string]bool{}
	if decl.Base != nil {
		for name, f := range decl.Base.Schema {
			r.Schema[name] = f
		}
		for name, v := range decl.Base.Validators {
			r.Validators[name] = v
		}
		for name, e := range decl.Base.Endpoints {
			r.Endpoints[name] = e
			inherited[name] = true
		}
	}
	for name, f := range decl.Schema {
		f.Name = name
		r.Schema[name] = f
	}
	for _, name := range decl.Removed {
		delete(r.Schema, name)
	}

	// Resolution phase: identifier installation.
	idName := cfg.IDField.Name
	removedID := contains(decl.Removed, idName)
	if existing, ok := r.Schema[idName]; ok {
		existing.IsIdentifier = true
		r.Schema[idName] = existing
	} else if !removedID {
		r.Schema[idName] = cfg.IDField.Clone(func(f *field.Field) { f.IsIdentifier = true })
	}
	if idField, ok := r.Schema[idName]; ok {
		r.IDField = idField
	}

	for _, key := range decl.CompositeKey {
		if _, ok := r.Schema[key]; !ok {
			return nil, fmt.Errorf("resource: resource %q declares an invalid composite key %q", decl.Name, key)
		}
	}

	for name, e := range decl.ExplicitEndpoints {
		e.ResourceName = r.Name
		e.Name = name
		r.Endpoints[name] = e
	}

	// Standard endpoint synthesis: replace an inherited endpoint only if
	// it was auto-constructed, matching the teacher's inherited-endpoint
	// override rule.
	requested := decl.Endpoints
	if requested == nil {
		requested = cfg.DefaultEndpoints
	}
	for _, name := range requested {
		ctor, ok := cfg.StandardEndpoints[name]
		if !ok {
			return nil, fmt.Errorf("resource: resource %q requests unknown standard endpoint %q", decl.Name, name)
		}
		if existing, ok := r.Endpoints[name]; ok {
			if !(inherited[name] && existing.AutoConstructed) {
				continue
			}
		}
		e := ctor.Construct(r, nil)
		e.ResourceName = r.Name
		e.Name = name
		r.Endpoints[name] = e
	}

	for _, nv := range decl.Validators {
		r.Validators[nv.Name] = nv.Validator
		targets := nv.Validator.Endpoints
		if targets == nil {
			targets = cfg.ValidatedEndpoints
		}
		for _, endpointName := range targets {
			if e, ok := r.Endpoints[endpointName]; ok {
				e.Validators = append(e.Validators, nv.Validator)
				r.Endpoints[endpointName] = e
			}
		}
	}

	r.Title = title(decl.Name)
	return r, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func title(name string) string {
	if name == "" {
		return ""
	}
	out := []rune{}
	for i, c := range name {
		if i > 0 && c >= 'A' && c <= 'Z' {
			out = append(out, ' ')
		}
		out = append(out, c)
	}
	return string(out)
}

// EnumerateEndpoints yields (address, endpoint) for every endpoint on r,
// pre-populating the address's resource and endpoint name as
// Endpoint.attach does in the teacher source.
func (r *Resource) EnumerateEndpoints(base address.Address) []EndpointEntry {
	names := make([]string, 0, len(r.Endpoints))
	for name := range r.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]EndpointEntry, 0, len(names))
	for _, name := range names {
		e := r.Endpoints[name]
		a := base.Clone(func(addr *address.Address) {
			addr.Resource = r.Name
			addr.Endpoint = e.Name
			if e.Specific {
				addr.Subject = address.Wildcard
			}
		})
		entries = append(entries, EndpointEntry{Address: a, Endpoint: e})
	}
	return entries
}

// EndpointEntry pairs a fully-addressed endpoint with its definition.
type EndpointEntry struct {
	Address  address.Address
	Endpoint endpoint.Endpoint
}

// Describe returns a serializable description of r as mounted behind c,
// mirroring Resource.describe: schema, composite key, title, and every
// endpoint's own description. omissions is forwarded to the schema and
// every endpoint's own schema, per spec §9's resolution of describe's
// omissions parameter.
func (r *Resource) Describe(c *Controller, verbose bool, omissions []string) map[string]any {
	names := make([]string, 0, len(r.Endpoints))
	for name := range r.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	endpoints := make(map[string]any, len(names))
	for _, name := range names {
		endpoints[name] = r.Endpoints[name].Describe(verbose, omissions)
	}

	d := map[string]any{
		"__subject__": "resource",
		"name":        r.Name,
		"title":       r.Title,
		"schema":      r.Schema.Describe(verbose, omissions),
		"endpoints":   endpoints,
	}
	if len(r.CompositeKey) > 0 || verbose {
		d["composite_key"] = r.CompositeKey
	}
	if c != nil {
		d["version"] = c.Version.String()
	}
	return d
}

// Reconstruct rebuilds a standalone *Resource from the map
// Describe(c, true, nil) produces, the inverse operation spec §4.2 names
// alongside describe and spec §8 requires to round-trip
// (reconstruct(describe(R)) ≡ R) on schema, endpoints, composite key, and
// version for a verbose, non-omitted description. The rebuilt Resource
// carries no Configuration or live Controller binding — those are
// construction-time/runtime concerns a description cannot carry — so it is
// only suitable for introspection (schema/endpoint inspection, client-side
// validation), not for re-registering as a live mount.
func Reconstruct(d map[string]any) (*Resource, error) {
	r := &Resource{Endpoints: map[string]endpoint.Endpoint{}, Validators: map[string]endpoint.Validator{}}
	r.Name, _ = d["name"].(string)
	r.Title, _ = d["title"].(string)

	if sd, ok := d["schema"].(map[string]any); ok {
		schema, err := field.ReconstructSchema(sd)
		if err != nil {
			return nil, fmt.Errorf("resource %q: schema: %w", r.Name, err)
		}
		r.Schema = schema
	}
	if idField, ok := r.Schema.Identifier(); ok {
		r.IDField = idField
	}

	if ck, ok := d["composite_key"]; ok {
		for _, v := range toAnySlice(ck) {
			if s, ok := v.(string); ok {
				r.CompositeKey = append(r.CompositeKey, s)
			}
		}
	}

	if ed, ok := d["endpoints"].(map[string]any); ok {
		for name, raw := range ed {
			em, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("resource %q: endpoint %q has a malformed description", r.Name, name)
			}
			e, err := endpoint.Reconstruct(em)
			if err != nil {
				return nil, fmt.Errorf("resource %q: %w", r.Name, err)
			}
			e.ResourceName = r.Name
			r.Endpoints[name] = e
		}
	}

	if v, ok := d["version"].(string); ok {
		ver, err := address.ParseVersion(v)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		r.Major = ver.Major
	}
	return r, nil
}

// toAnySlice coerces a decoded []string or []any into []any, tolerating
// both native Go callers and values decoded off the wire.
func toAnySlice(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// Controller binds a resource version to a handler set. Identified by
// (resource_name, (major, minor)).
type Controller struct {
	ResourceName string
	Resource     *Resource
	Version      address.Version

	Handlers map[string]Handler
	Acquire  func(subject string) (any, bool)
}

// Handler implements one endpoint's dispatch for a controller, mirroring
// Controller.dispatch delegating to a per-endpoint implementation.
type Handler func(req *Request) (any, error)

// Request is the data a controller handler receives: the resolved subject
// (if any) and the schema-validated inbound data.
type Request struct {
	Subject any
	Data    any
}

// NewController validates and constructs a Controller for resource r at
// version, mirroring ControllerMeta's version checks.
func NewController(r *Resource, version address.Version, handlers map[string]Handler) (*Controller, error) {
	if version.Major < 1 || version.Minor < 0 {
		return nil, fmt.Errorf("resource: controller declares an invalid version %s", version)
	}
	if version.Major != r.Major {
		return nil, fmt.Errorf("resource: controller specifies unknown major version %d of resource %q", version.Major, r.Name)
	}
	return &Controller{ResourceName: r.Name, Resource: r, Version: version, Handlers: handlers}, nil
}

// Dispatch invokes the handler registered for endpoint e, mirroring
// Controller.dispatch.
func (c *Controller) Dispatch(e endpoint.Endpoint, req *Request) (any, error) {
	h, ok := c.Handlers[e.Name]
	if !ok {
		return nil, fmt.Errorf("resource: no implementation available for %s", e)
	}
	return h(req)
}
