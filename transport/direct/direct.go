// Package direct implements the in-process transport: a compiled routing
// table over a bundle, invoked directly without going through a wire
// format. Grounded on _examples/original_source/mesh/transport/internal.py,
// which binds a specification's compiled routes to direct Python calls
// rather than a socket.
package direct

import (
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/bundle"
	"github.com/go-mizu/reef/pipeline"
)

// Server is a compiled, directly callable routing table over a bundle.
type Server struct {
	routes map[string]bundle.EndpointRoute
	config pipeline.Config
}

// New compiles b's endpoint routes, keyed by their route-masked address
// signature, and returns a Server that runs every call through cfg.
func New(b *bundle.Bundle, cfg pipeline.Config) *Server {
	s := &Server{routes: map[string]bundle.EndpointRoute{}, config: cfg}
	for _, route := range b.EnumerateEndpoints(address.Address{}) {
		key := route.Address.Render(address.MaskRoute, "", "")
		s.routes[key] = route
	}
	return s
}

// Call dispatches a request to the endpoint addressed by addr, running it
// through the full pipeline state machine.
func (s *Server) Call(addr address.Address, subjectKey string, data map[string]any) (*pipeline.Response, error) {
	return s.CallContext(addr, subjectKey, data, nil)
}

// CallContext is Call with an explicit mediator context, used by the
// generic client to forward per-call context values that the three-arg
// Call has no room for.
func (s *Server) CallContext(addr address.Address, subjectKey string, data map[string]any, context map[string]string) (*pipeline.Response, error) {
	key := addr.Render(address.MaskRoute, "", "")
	route, ok := s.routes[key]
	if !ok {
		return nil, fmt.Errorf("direct: no route for %q", key)
	}
	req := &pipeline.Request{Address: addr, SubjectKey: subjectKey, Data: data, Context: context}
	return pipeline.Run(s.config, route.Controller, route.Endpoint, req), nil
}
