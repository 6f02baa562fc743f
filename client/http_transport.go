package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/spec"
	"github.com/go-mizu/reef/status"
)

// HTTPTransport calls a remote bundle mounted by transport/httpapi over
// plain HTTP, resolving each endpoint's method from the held Specification
// (the wire request itself carries no method; transport/httpapi.Server
// reads it off the matched route at mount time, so the client must read it
// off the same description).
type HTTPTransport struct {
	BaseURL    string
	HTTPClient *http.Client

	Specification *spec.Specification

	// ContextHeaderPrefix mirrors transport/httpapi.Server's field of the
	// same name; leave empty to send/receive no context headers.
	ContextHeaderPrefix string
}

// NewHTTPTransport returns a Transport that speaks to baseURL using
// http.DefaultClient, resolving methods against specification.
func NewHTTPTransport(baseURL string, specification *spec.Specification) *HTTPTransport {
	return &HTTPTransport{BaseURL: baseURL, HTTPClient: http.DefaultClient, Specification: specification}
}

func (t *HTTPTransport) Call(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	method, err := t.resolveMethod(req.Address)
	if err != nil {
		return nil, err
	}

	path := req.Address.Render(address.MaskWire, req.SubjectKey, "")
	target := strings.TrimRight(t.BaseURL, "/") + path

	httpReq, err := t.buildRequest(ctx, method, target, req)
	if err != nil {
		return nil, err
	}
	t.applyContext(httpReq, req.Context)

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyConnectionError("http "+method+" "+target, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyConnectionError("http "+method+" "+target, err)
	}

	resp := &pipeline.Response{Status: status.FromHTTP(httpResp.StatusCode), Context: t.extractContext(httpResp.Header)}
	if len(raw) > 0 {
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("client: decoding response: %w", err)
		}
		resp.Data = data
	}
	return resp, nil
}

func (t *HTTPTransport) resolveMethod(addr address.Address) (string, error) {
	if t.Specification == nil {
		return "", fmt.Errorf("client: HTTPTransport has no Specification to resolve a method from")
	}
	desc, err := t.Specification.Find(addr)
	if err != nil {
		return "", err
	}
	method, _ := desc["method"].(string)
	if method == "" {
		return "", fmt.Errorf("client: endpoint %q has no declared method", addr.Render(address.MaskRoute, "", ""))
	}
	return method, nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, method, target string, req *pipeline.Request) (*http.Request, error) {
	if method == http.MethodGet {
		if len(req.Data) > 0 {
			values := url.Values{}
			for k, v := range req.Data {
				values.Set(k, fmt.Sprint(v))
			}
			target += "?" + values.Encode()
		}
		return http.NewRequestWithContext(ctx, method, target, nil)
	}

	var body io.Reader
	if req.Data != nil {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	return httpReq, nil
}

func (t *HTTPTransport) applyContext(req *http.Request, callContext map[string]string) {
	if t.ContextHeaderPrefix == "" {
		return
	}
	for key, value := range callContext {
		req.Header.Set(t.ContextHeaderPrefix+key, value)
	}
}

func (t *HTTPTransport) extractContext(header http.Header) map[string]string {
	if t.ContextHeaderPrefix == "" {
		return nil
	}
	ctx := map[string]string{}
	canonical := http.CanonicalHeaderKey(t.ContextHeaderPrefix)
	for name, values := range header {
		if len(values) == 0 || !strings.HasPrefix(name, canonical) {
			continue
		}
		ctx[strings.TrimPrefix(name, canonical)] = values[0]
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}
