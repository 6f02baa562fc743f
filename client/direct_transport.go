package client

import (
	"context"

	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/transport/direct"
)

// DirectTransport binds a Client to an in-process direct.Server, the
// fastest of the three transports and the one used when a bundle is called
// from the same process that mounted it.
type DirectTransport struct {
	Server *direct.Server
}

// NewDirectTransport returns a Transport backed by s.
func NewDirectTransport(s *direct.Server) *DirectTransport {
	return &DirectTransport{Server: s}
}

// Call dispatches req directly against the bound Server; in-process calls
// never fail at the connection level, so any error here is a routing
// failure, which Client.Call still reports as a generic ConnectionError.
func (t *DirectTransport) Call(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return t.Server.CallContext(req.Address, req.SubjectKey, req.Data, req.Context)
}
