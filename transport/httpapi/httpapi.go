// Package httpapi implements the HTTP/WSGI-style transport described in
// spec §6 "HTTP transport": a bundle's compiled routing table mounted onto
// a reef.Router, with Content-Type/Accept-driven format negotiation and a
// context-header prefix mapping. Grounded on the root reef package's own
// Router/Ctx (the teacher's HTTP ambient stack) and on
// _examples/original_source/mesh/transport/http.py for the negotiation and
// liveness rules.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	reef "github.com/go-mizu/reef"
	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/bundle"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/spec"
	"github.com/go-mizu/reef/status"
)

// jsonCodec is the default wire format.
type jsonCodec struct{}

func (jsonCodec) Decode(_ string, raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("httpapi: invalid json body: %w", err)
	}
	return m, nil
}

func (jsonCodec) Encode(_ string, v any) ([]byte, error) { return json.Marshal(v) }

// formCodec is the URL-encoded fallback format used for GET requests,
// whose payload travels in the query string per spec §6.
type formCodec struct{}

func (formCodec) Decode(_ string, raw []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("httpapi: invalid urlencoded body: %w", err)
	}
	return valuesToMap(values), nil
}

func (formCodec) Encode(_ string, v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("httpapi: urlencoded format requires an object payload")
	}
	values := url.Values{}
	for k, val := range m {
		values.Set(k, fmt.Sprint(val))
	}
	return []byte(values.Encode()), nil
}

func valuesToMap(values url.Values) map[string]any {
	m := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			m[k] = v[0]
		} else {
			list := make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
			m[k] = list
		}
	}
	return m
}

var contentTypes = map[string]string{
	"json":       "application/json; charset=utf-8",
	"urlencoded": "application/x-www-form-urlencoded",
}

var mimetypeToFormat = map[string]string{
	"application/json":                  "json",
	"application/x-www-form-urlencoded": "urlencoded",
}

func formatFromContentType(header string) (string, bool) {
	mt, _, _ := strings.Cut(header, ";")
	mt = strings.TrimSpace(mt)
	name, ok := mimetypeToFormat[mt]
	return name, ok
}

// Server mounts one or more bundles onto a reef.Router, translating HTTP
// requests into pipeline.Request values and pipeline.Response values back
// into HTTP responses.
type Server struct {
	router *reef.Router
	config pipeline.Config

	codecs        map[string]pipeline.Codec
	defaultFormat string

	// ContextHeaderPrefix, if set, maps inbound/outbound header names to
	// pipeline context keys by stripping/prepending this prefix, per spec
	// §6's "configurable prefix maps header name -> context key."
	ContextHeaderPrefix string
}

// New returns a Server bound to router, running every request through cfg.
func New(router *reef.Router, cfg pipeline.Config) *Server {
	return &Server{
		router:        router,
		config:        cfg,
		codecs:        map[string]pipeline.Codec{"json": jsonCodec{}, "urlencoded": formCodec{}},
		defaultFormat: "json",
	}
}

// Mount compiles b's endpoint routes under prefix and registers one HTTP
// route per endpoint, plus the bundle-root introspection GET.
func (s *Server) Mount(b *bundle.Bundle, prefix string) {
	base := address.Address{Prefix: prefix}
	for _, route := range b.EnumerateEndpoints(base) {
		pattern := wirePattern(route.Address)
		s.router.Handle(route.Endpoint.Method, pattern, s.handler(route))
	}

	specification, specErr := spec.FromBundle(b)
	root := strings.TrimRight(prefix, "/") + "/" + b.Name
	introspect := s.introspectionHandler(specification, specErr)
	s.router.Get(root, introspect)
	s.router.Get(root+"!json", introspect)
}

// introspectionHandler serves the bundle root: a plain liveness GET returns
// 200 with no body, while a request naming application/json (via Accept or
// the trailing "!json" format suffix) returns the full Specification
// describe tree, per spec §4's Introspection endpoint.
func (s *Server) introspectionHandler(specification *spec.Specification, buildErr error) reef.Handler {
	return func(c *reef.Ctx) error {
		if !wantsIntrospection(c) {
			c.Status(http.StatusOK)
			c.Writer().WriteHeader(http.StatusOK)
			return nil
		}
		if buildErr != nil {
			return c.JSON(status.ServerError.HTTP(), map[string]any{"errors": []string{buildErr.Error()}, "structure": map[string]any{}})
		}
		return c.JSON(http.StatusOK, specification.Encode())
	}
}

// wantsIntrospection reports whether c's request asked for the bundle's
// JSON description, via a "!json" path suffix or an Accept header naming
// application/json.
func wantsIntrospection(c *reef.Ctx) bool {
	if strings.HasSuffix(c.Request().URL.Path, "!json") {
		return true
	}
	name, ok := formatFromContentType(c.Request().Header.Get("Accept"))
	return ok && name == "json"
}

// wirePattern renders addr's wire path as a reef route pattern, replacing a
// wildcard subject/subsubject with the named path parameters {id}/{subid},
// per spec §6's "subject and subsubject replaced by the literal token id."
func wirePattern(addr address.Address) string {
	var b strings.Builder
	b.WriteString(addr.Prefix)
	for _, seg := range addr.Bundle {
		fmt.Fprintf(&b, "/%s/%s", seg.Name, seg.Version)
	}
	if addr.Resource != "" {
		b.WriteString("/")
		b.WriteString(addr.Resource)
	}
	switch {
	case addr.Subject.Wildcard:
		b.WriteString("/{id}")
	case addr.Subject.Value != "":
		b.WriteString("/")
		b.WriteString(addr.Subject.Value)
	}
	if addr.Subresource != "" {
		b.WriteString("/")
		b.WriteString(addr.Subresource)
	}
	switch {
	case addr.Subsubject.Wildcard:
		b.WriteString("/{subid}")
	case addr.Subsubject.Value != "":
		b.WriteString("/")
		b.WriteString(addr.Subsubject.Value)
	}
	return b.String()
}

func (s *Server) handler(route bundle.EndpointRoute) reef.Handler {
	return func(c *reef.Ctx) error {
		addr := route.Address
		subjectKey := ""
		if id := c.Param("id"); id != "" {
			subjectKey = id
		}
		if sid := c.Param("subid"); sid != "" {
			addr = addr.Clone(func(a *address.Address) { a.Subsubject = address.Subject{Value: sid} })
		}

		inFormat := s.inboundFormat(c)
		data, err := s.readRequestData(c, inFormat)
		if err != nil {
			return c.JSON(status.Invalid.HTTP(), map[string]any{"errors": []string{err.Error()}, "structure": map[string]any{}})
		}

		req := &pipeline.Request{
			Address:    addr,
			SubjectKey: subjectKey,
			Context:    s.extractContext(c),
			Data:       data,
		}
		resp := pipeline.Run(s.config, route.Controller, route.Endpoint, req)
		s.applyContext(c, resp.Context)

		outFormat := s.outboundFormat(c, inFormat)
		return s.writeResponse(c, outFormat, resp)
	}
}

func (s *Server) readRequestData(c *reef.Ctx, format string) (map[string]any, error) {
	codec := s.codecFor(format)
	if c.Request().Method == http.MethodGet {
		return codec.Decode(format, []byte(c.Request().URL.RawQuery))
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return codec.Decode(format, raw)
}

func (s *Server) codecFor(format string) pipeline.Codec {
	if c, ok := s.codecs[format]; ok {
		return c
	}
	return s.codecs[s.defaultFormat]
}

// inboundFormat selects the request's payload format: Content-Type if
// recognized, else urlencoded for GET, else the server default.
func (s *Server) inboundFormat(c *reef.Ctx) string {
	if name, ok := formatFromContentType(c.Request().Header.Get("Content-Type")); ok {
		if _, known := s.codecs[name]; known {
			return name
		}
	}
	if c.Request().Method == http.MethodGet {
		return "urlencoded"
	}
	return s.defaultFormat
}

// outboundFormat selects the response payload format: a trailing "!format"
// path suffix, then Accept, then the fallback already chosen for the
// request body.
func (s *Server) outboundFormat(c *reef.Ctx, fallback string) string {
	if idx := strings.LastIndexByte(c.Request().URL.Path, '!'); idx >= 0 {
		if name := c.Request().URL.Path[idx+1:]; name != "" {
			if _, known := s.codecs[name]; known {
				return name
			}
		}
	}
	if name, ok := formatFromContentType(c.Request().Header.Get("Accept")); ok {
		if _, known := s.codecs[name]; known {
			return name
		}
	}
	return fallback
}

func (s *Server) writeResponse(c *reef.Ctx, format string, resp *pipeline.Response) error {
	httpStatus := resp.Status.HTTP()
	if resp.Data == nil {
		c.Status(httpStatus)
		c.Writer().WriteHeader(httpStatus)
		return nil
	}
	codec := s.codecFor(format)
	raw, err := codec.Encode(format, resp.Data)
	if err != nil {
		return c.JSON(status.ServerError.HTTP(), map[string]any{"errors": []string{err.Error()}, "structure": map[string]any{}})
	}
	return c.Bytes(httpStatus, raw, contentTypes[format])
}

func (s *Server) extractContext(c *reef.Ctx) map[string]string {
	if s.ContextHeaderPrefix == "" {
		return nil
	}
	ctx := map[string]string{}
	for name, values := range c.Request().Header {
		if len(values) == 0 {
			continue
		}
		canonical := http.CanonicalHeaderKey(s.ContextHeaderPrefix)
		if !strings.HasPrefix(name, canonical) {
			continue
		}
		key := strings.TrimPrefix(name, canonical)
		ctx[key] = values[0]
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}

func (s *Server) applyContext(c *reef.Ctx, ctx map[string]string) {
	if s.ContextHeaderPrefix == "" || len(ctx) == 0 {
		return
	}
	for key, value := range ctx {
		c.Header().Set(s.ContextHeaderPrefix+key, value)
	}
}
