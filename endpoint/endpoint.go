// Package endpoint defines the endpoint contract shared by every resource
// operation: request/response schema, subject-handling flags, validators,
// and mediators. It is grounded on arterial-io/mesh's endpoint.py, kept
// free of any import on package resource (resources are referenced only
// by name) so that package resource and package standard can both depend
// on endpoint without a cycle.
package endpoint

import (
	"fmt"

	"github.com/go-mizu/reef/field"
	"github.com/go-mizu/reef/status"
)

// Response binds a status code to an optional response schema.
type Response struct {
	Status status.Status
	Schema *field.Schema
}

// Declaration is the builder-pattern struct-of-options used to overlay a
// standard endpoint's synthesized defaults, replacing the nested-class
// endpoint declarations of the teacher source (see spec §9 "Replacing
// nested-class endpoint declarations").
type Declaration struct {
	Title           string
	Description     string
	Metadata        map[string]any
	ValidResponses  []status.Status
	InvalidResponses []status.Status
	SupportReturning bool
	Operators       field.Schema
}

// Endpoint is a contract with a name, transport method hint, request
// schema, response table, subject-handling flags, validators, and
// free-form metadata.
type Endpoint struct {
	ResourceName string
	Name         string
	Method       string

	Schema    *field.Schema
	Responses map[status.Status]Response

	Specific        bool
	SubjectRequired bool
	Batch           bool

	Validators []Validator
	Metadata   map[string]any

	Title           string
	Description     string
	AutoConstructed bool
}

// Describe returns a serializable description of e, mirroring
// Endpoint.describe: schema and per-status response schemas nested under
// their own keys. omissions is forwarded to every schema described, per
// spec §9's resolution of describe's omissions parameter.
func (e Endpoint) Describe(verbose bool, omissions []string) map[string]any {
	d := map[string]any{
		"__subject__":      "endpoint",
		"name":             e.Name,
		"method":           e.Method,
		"specific":         e.Specific,
		"subject_required": e.SubjectRequired,
		"batch":            e.Batch,
	}
	if e.Title != "" || verbose {
		d["title"] = e.Title
	}
	if e.Description != "" || verbose {
		d["description"] = e.Description
	}
	if e.Schema != nil {
		d["schema"] = e.Schema.Describe(verbose, omissions)
	}
	responses := make(map[string]any, len(e.Responses))
	for s, resp := range e.Responses {
		r := map[string]any{"status": string(s)}
		if resp.Schema != nil {
			r["schema"] = resp.Schema.Describe(verbose, omissions)
		}
		responses[string(s)] = r
	}
	d["responses"] = responses
	return d
}

// Reconstruct rebuilds an Endpoint from the map Describe(true, nil)
// produces, the inverse spec §4.2 names and spec §8 requires to round-trip
// on schema/responses for a verbose, non-omitted description.
func Reconstruct(d map[string]any) (Endpoint, error) {
	e := Endpoint{}
	e.Name, _ = d["name"].(string)
	e.Method, _ = d["method"].(string)
	e.Specific, _ = d["specific"].(bool)
	e.SubjectRequired, _ = d["subject_required"].(bool)
	e.Batch, _ = d["batch"].(bool)
	e.Title, _ = d["title"].(string)
	e.Description, _ = d["description"].(string)

	if sd, ok := d["schema"].(map[string]any); ok {
		schema, err := field.ReconstructSchema(sd)
		if err != nil {
			return Endpoint{}, fmt.Errorf("endpoint %q: schema: %w", e.Name, err)
		}
		e.Schema = &schema
	}

	if rd, ok := d["responses"].(map[string]any); ok {
		e.Responses = make(map[status.Status]Response, len(rd))
		for key, raw := range rd {
			rm, ok := raw.(map[string]any)
			if !ok {
				return Endpoint{}, fmt.Errorf("endpoint %q: response %q has a malformed description", e.Name, key)
			}
			resp := Response{Status: status.Status(key)}
			if sd, ok := rm["schema"].(map[string]any); ok {
				schema, err := field.ReconstructSchema(sd)
				if err != nil {
					return Endpoint{}, fmt.Errorf("endpoint %q: response %q: %w", e.Name, key, err)
				}
				resp.Schema = &schema
			}
			e.Responses[status.Status(key)] = resp
		}
	}
	return e, nil
}

// Validator is an endpoint-attached check run against already
// schema-validated inbound data, mirroring the teacher's `validator`
// classmethod decorator. Attr, if non-empty, is the schema attribute that
// receives any error this validator raises.
type Validator struct {
	Attr      string
	Endpoints []string
	Check     func(data any) error
}

// AppliesTo reports whether v should run for the named endpoint.
func (v Validator) AppliesTo(endpointName string) bool {
	if len(v.Endpoints) == 0 {
		return true
	}
	for _, name := range v.Endpoints {
		if name == endpointName {
			return true
		}
	}
	return false
}

// String renders "resource:name", matching the teacher's Endpoint.__str__.
func (e Endpoint) String() string { return fmt.Sprintf("%s:%s", e.ResourceName, e.Name) }

// ValidationError carries structural validation failures, grouped by
// target attribute plus a flat list of errors with no specific target.
type ValidationError struct {
	Errors    []string
	Structure map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d flat, %d attributed", len(e.Errors), len(e.Structure))
}

// Substantive reports whether e actually carries any errors.
func (e *ValidationError) Substantive() bool {
	return e != nil && (len(e.Errors) > 0 || len(e.Structure) > 0)
}

func (e *ValidationError) merge(attr string, err error) {
	if err == nil {
		return
	}
	if attr == "" {
		e.Errors = append(e.Errors, err.Error())
		return
	}
	if e.Structure == nil {
		e.Structure = make(map[string][]string)
	}
	e.Structure[attr] = append(e.Structure[attr], err.Error())
}

// Validate runs every validator attached to e against data, collecting
// per-attribute errors exactly as the teacher's Endpoint._validate_data
// does: each validator's failure is merged under its declared Attr (or
// flat, if Attr is empty).
func (e Endpoint) Validate(data any) error {
	result := &ValidationError{}
	for _, v := range e.Validators {
		if !v.AppliesTo(e.Name) {
			continue
		}
		if err := v.Check(data); err != nil {
			result.merge(v.Attr, err)
		}
	}
	if result.Substantive() {
		return result
	}
	return nil
}
