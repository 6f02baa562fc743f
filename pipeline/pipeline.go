// Package pipeline implements the endpoint request pipeline: the ordered
// state machine that turns a routed address, raw payload, and resolved
// controller/endpoint pair into a finalized response. Grounded on spec
// section "4.6 Request pipeline" and on the dispatch/validation ordering
// implied throughout the teacher source's mesh/resource.py and
// mesh/endpoint.py (mediator hooks, subject acquisition, per-attribute
// validation, response-schema discipline).
package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/endpoint"
	"github.com/go-mizu/reef/field"
	"github.com/go-mizu/reef/resource"
	"github.com/go-mizu/reef/status"
)

// Codec deserializes/serializes a payload in a named wire format, injected
// by the owning transport so the pipeline itself stays format-agnostic.
type Codec interface {
	Decode(mimetype string, raw []byte) (map[string]any, error)
	Encode(mimetype string, v any) ([]byte, error)
}

// Mediator observes every request before subject resolution (state
// Received -> Mediated). Setting resp.Status short-circuits the pipeline;
// returning an error is reported as INVALID.
type Mediator interface {
	BeforeValidation(e endpoint.Endpoint, req *Request, resp *Response) error
}

// MediatorFunc adapts a plain function to Mediator.
type MediatorFunc func(e endpoint.Endpoint, req *Request, resp *Response) error

// BeforeValidation calls f.
func (f MediatorFunc) BeforeValidation(e endpoint.Endpoint, req *Request, resp *Response) error {
	return f(e, req, resp)
}

// Request is the in-flight request value flowing through the pipeline. A
// transport populates Address/Context/SubjectKey/Mimetype and either Raw
// (a serialized payload) or Data (an already-structured one, e.g. from the
// in-process transport).
type Request struct {
	Address    address.Address
	Context    map[string]string
	SubjectKey string

	Mimetype string
	Raw      []byte
	Data     map[string]any
}

// Response is the in-flight, mutable response value; it is read-only once
// the pipeline returns it.
type Response struct {
	Status  status.Status
	Data    any
	Context map[string]string
}

// DeclaredError is one of the "declared request errors": an exception kind
// tied to a single recognized non-OK status, carrying that status's
// content. Controller handlers return this to terminate a request with a
// specific non-OK outcome without it being treated as SERVER_ERROR.
type DeclaredError struct {
	Status status.Status
	Data   any
}

func (e *DeclaredError) Error() string {
	return fmt.Sprintf("pipeline: declared error %s", e.Status)
}

// Config bundles the per-server objects the pipeline needs beyond the
// controller/endpoint/request triple.
type Config struct {
	// Mediators run in order on every request before subject resolution.
	Mediators []Mediator
	// Codec performs mimetype-aware (de)serialization of Request.Raw; may
	// be nil for transports that only ever supply already-structured Data.
	Codec Codec
}

// Run executes the Received -> Mediated -> Subject-Resolved -> Validated ->
// Dispatched -> Finalized state machine.
func Run(cfg Config, c *resource.Controller, e endpoint.Endpoint, req *Request) *Response {
	resp := &Response{}

	// 1. Received -> Mediated.
	for _, m := range cfg.Mediators {
		if err := m.BeforeValidation(e, req, resp); err != nil {
			return invalidResponse(err)
		}
		if resp.Status != "" {
			return resp
		}
	}

	// 2. Mediated -> Subject-Resolved.
	var subject any
	if e.Specific {
		if req.SubjectKey == "" {
			return badRequest("endpoint requires a subject")
		}
		if c.Acquire != nil {
			resolved, ok := c.Acquire(req.SubjectKey)
			if !ok {
				if e.SubjectRequired {
					return &Response{Status: status.Gone}
				}
			} else {
				subject = resolved
			}
		} else {
			subject = req.SubjectKey
		}
	} else if req.SubjectKey != "" {
		return badRequest("endpoint does not accept a subject")
	}

	// 3. Subject-Resolved -> Validated.
	if e.Schema != nil {
		if req.Data == nil && len(req.Raw) > 0 {
			if req.Mimetype == "" || cfg.Codec == nil {
				return invalidResponse(fmt.Errorf("pipeline: payload present without a usable mimetype/codec"))
			}
			data, err := cfg.Codec.Decode(req.Mimetype, req.Raw)
			if err != nil {
				return invalidResponse(err)
			}
			req.Data = data
		}
		if err := validateSchema(*e.Schema, req.Data); err != nil {
			return invalidResponse(err)
		}
		if err := e.Validate(req.Data); err != nil {
			return invalidResponse(err)
		}
	} else if len(req.Raw) > 0 || len(req.Data) > 0 {
		return badRequest("endpoint accepts no request body")
	}

	// 4. Validated -> Dispatched.
	result, err := c.Dispatch(e, &resource.Request{Subject: subject, Data: req.Data})
	if err != nil {
		var declared *DeclaredError
		if errors.As(err, &declared) {
			return finalize(e, &Response{Status: declared.Status, Data: declared.Data})
		}
		var verr *endpoint.ValidationError
		if errors.As(err, &verr) {
			return invalidResponse(verr)
		}
		return &Response{Status: status.ServerError}
	}
	resp.Data = result

	// 5. Dispatched -> Finalized.
	return finalize(e, resp)
}

func finalize(e endpoint.Endpoint, resp *Response) *Response {
	if resp.Status == "" {
		resp.Status = status.OK
	}

	def, hasDef := e.Responses[resp.Status]
	if !hasDef {
		if !(resp.Status.IsError() && isEmpty(resp.Data)) {
			return &Response{Status: status.ServerError}
		}
		return resp
	}

	if def.Schema != nil {
		if err := validateSchema(*def.Schema, asMap(resp.Data)); err != nil {
			return &Response{Status: status.ServerError}
		}
	} else if !isEmpty(resp.Data) {
		return &Response{Status: status.ServerError}
	}
	return resp
}

// validateSchema checks every field in schema against the corresponding
// key in data, collecting per-attribute failures exactly as
// endpoint.Endpoint.Validate does for validators.
func validateSchema(schema field.Schema, data map[string]any) error {
	result := &endpoint.ValidationError{}
	for name, f := range schema {
		if err := f.Validate(data[name]); err != nil {
			if result.Structure == nil {
				result.Structure = map[string][]string{}
			}
			result.Structure[name] = append(result.Structure[name], err.Error())
		}
	}
	if result.Substantive() {
		return result
	}
	return nil
}

func invalidResponse(err error) *Response {
	data := map[string]any{}
	if verr, ok := err.(*endpoint.ValidationError); ok {
		data["errors"] = append([]string(nil), verr.Errors...)
		structure := make(map[string]any, len(verr.Structure))
		for k, v := range verr.Structure {
			structure[k] = v
		}
		data["structure"] = structure
	} else {
		data["errors"] = []string{err.Error()}
		data["structure"] = map[string]any{}
	}
	return &Response{Status: status.Invalid, Data: data}
}

func badRequest(msg string) *Response {
	return &Response{Status: status.BadRequest, Data: map[string]any{"errors": []string{msg}, "structure": map[string]any{}}}
}

func isEmpty(data any) bool {
	if data == nil {
		return true
	}
	if m, ok := data.(map[string]any); ok {
		return len(m) == 0
	}
	return false
}

func asMap(data any) map[string]any {
	m, _ := data.(map[string]any)
	return m
}
