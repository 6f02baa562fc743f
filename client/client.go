// Package client implements the generic API client described in spec
// section "7 Error handling" ("clients parse the response status ...") and
// grounded on arterial-io/mesh's transport/base.py Client class: a
// specification-bound, transport-agnostic facade that turns an address plus
// a payload into either a decoded result or a typed client-side error.
//
// A Client does not know which wire a given Transport speaks; adapters in
// this package (DirectTransport, HTTPTransport, MeshTransport) bind it to
// the three transports this module ships.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/spec"
	"github.com/go-mizu/reef/status"
)

// Transport performs one request/response round trip against whatever wire
// it speaks. Implementations do not interpret Response.Status; that is the
// Client's job.
type Transport interface {
	Call(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Error is the "generic form carrying only the status" raised for a non-OK
// response whose endpoint declares no schema for that status, or the
// "corresponding declared request error" when one is declared; Data is nil
// in the former case and the deserialized payload in the latter, per spec
// §7's client error-taxonomy paragraph.
type Error struct {
	Status status.Status
	Data   any
}

func (e *Error) Error() string {
	if e.Data == nil {
		return fmt.Sprintf("client: %s", e.Status)
	}
	return fmt.Sprintf("client: %s: %v", e.Status, e.Data)
}

// ConnectionError wraps a connection-level failure (refused, timed out, or
// generic), distinguished from a declared request Error because no response
// status was ever received. Op names the attempted operation for context.
type ConnectionError struct {
	Op      string
	Refused bool
	Timeout bool
	Err     error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Refused:
		return fmt.Sprintf("client: %s: connection refused: %v", e.Op, e.Err)
	case e.Timeout:
		return fmt.Sprintf("client: %s: timed out: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Client calls a bundle's endpoints by address over a bound Transport,
// resolving declared-error schemas against a held Specification.
type Client struct {
	Specification *spec.Specification
	Transport     Transport

	// Context is sent with every request, merged under any per-call context
	// supplied to Call.
	Context map[string]string
}

// New returns a Client bound to spec's description of a bundle and t.
func New(specification *spec.Specification, t Transport) *Client {
	return &Client{Specification: specification, Transport: t}
}

// Call resolves addr against the bound Specification and dispatches subject/
// data through the Transport, per spec §7's client parsing rules: an OK-ish
// status returns the response as-is; a non-OK status raises an *Error
// (schema-backed or generic); a transport failure is reported as a
// *ConnectionError rather than an *Error.
func (c *Client) Call(ctx context.Context, addr address.Address, subjectKey string, data map[string]any, callContext map[string]string) (*pipeline.Response, error) {
	merged := mergeContext(c.Context, callContext)

	req := &pipeline.Request{Address: addr, SubjectKey: subjectKey, Data: data, Context: merged}
	resp, err := c.Transport.Call(ctx, req)
	if err != nil {
		return nil, classifyConnectionError("call", err)
	}

	if resp.Status.IsError() {
		return nil, c.declaredError(addr, resp)
	}
	return resp, nil
}

// CallJSON calls addr as Call does, then round-trips the successful
// response's Data into out via JSON (the common path for typed callers that
// don't want to walk map[string]any by hand).
func (c *Client) CallJSON(ctx context.Context, addr address.Address, subjectKey string, data map[string]any, callContext map[string]string, out any) error {
	resp, err := c.Call(ctx, addr, subjectKey, data, callContext)
	if err != nil {
		return err
	}
	if resp.Data == nil || out == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("client: re-encoding response: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// MustCall calls Call and panics on any error, for callers (tests, scripts)
// that treat a failed call as a programmer error.
func (c *Client) MustCall(ctx context.Context, addr address.Address, subjectKey string, data map[string]any, callContext map[string]string) *pipeline.Response {
	resp, err := c.Call(ctx, addr, subjectKey, data, callContext)
	if err != nil {
		panic(err)
	}
	return resp
}

// declaredError classifies resp per spec §7: if the endpoint's description
// declares a schema for resp.Status, the payload survives on the returned
// Error; otherwise only the status survives. With no bound Specification,
// or when Find cannot resolve addr, the payload is kept as-is.
func (c *Client) declaredError(addr address.Address, resp *pipeline.Response) *Error {
	if c.Specification == nil {
		return &Error{Status: resp.Status, Data: resp.Data}
	}
	desc, err := c.Specification.Find(addr)
	if err != nil {
		return &Error{Status: resp.Status, Data: resp.Data}
	}
	responses, _ := desc["responses"].(map[string]any)
	entry, ok := responses[string(resp.Status)].(map[string]any)
	if !ok {
		return &Error{Status: resp.Status}
	}
	if _, hasSchema := entry["schema"]; !hasSchema {
		return &Error{Status: resp.Status}
	}
	return &Error{Status: resp.Status, Data: resp.Data}
}

func mergeContext(base, additional map[string]string) map[string]string {
	if len(base) == 0 {
		return additional
	}
	if len(additional) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(additional))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range additional {
		merged[k] = v
	}
	return merged
}
