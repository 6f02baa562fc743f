package mesh

import (
	"encoding/json"
	"net"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/bundle"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/status"
	"github.com/vmihailenco/msgpack/v5"
)

// jsonCodec is the mesh transport's default wire format.
type jsonCodec struct{}

func (jsonCodec) Decode(_ string, raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (jsonCodec) Encode(_ string, v any) ([]byte, error) { return json.Marshal(v) }

// msgpackCodec is the binary-friendly wire format named in SPEC_FULL's
// domain-stack section for the mesh transport.
type msgpackCodec struct{}

func (msgpackCodec) Decode(_ string, raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (msgpackCodec) Encode(_ string, v any) ([]byte, error) { return msgpack.Marshal(v) }

// Server dispatches mesh/1 requests arriving over accepted connections
// against a compiled bundle routing table, one request/response pair per
// ReadMessage/WriteMessage round trip on a connection.
type Server struct {
	routes map[string]bundle.EndpointRoute
	config pipeline.Config

	codecs          map[string]pipeline.Codec
	defaultMimetype string
}

// New returns a Server with no routes mounted, running every request
// through cfg (its Codec field is overridden per-request by the
// negotiated mimetype).
func New(cfg pipeline.Config) *Server {
	return &Server{
		routes:          map[string]bundle.EndpointRoute{},
		config:          cfg,
		codecs:          map[string]pipeline.Codec{"json": jsonCodec{}, "msgpack": msgpackCodec{}},
		defaultMimetype: "json",
	}
}

// SetDefaultMimetype overrides the wire codec that encodes every response
// and decodes a request whose mimetype token names no registered codec;
// name must be a mimetype token already registered as a codec ("json" or
// "msgpack"). Unknown tokens are ignored, leaving the prior default in
// place.
func (s *Server) SetDefaultMimetype(name string) {
	if _, ok := s.codecs[name]; ok {
		s.defaultMimetype = name
	}
}

// Mount compiles b's endpoint routes, keyed by route signature, into s.
func (s *Server) Mount(b *bundle.Bundle) {
	for _, route := range b.EnumerateEndpoints(address.Address{}) {
		key := route.Address.Render(address.MaskRoute, "", "")
		s.routes[key] = route
	}
}

// Serve accepts connections from l until Accept returns an error (e.g. the
// listener was closed), handling each connection's request loop in its own
// goroutine.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		role, msg, err := ReadMessage(conn)
		if err != nil {
			return
		}
		if role != "req" {
			return
		}
		resp := s.dispatch(msg)
		if err := WriteMessage(conn, "rep", *resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(msg *Message) *Message {
	addr, err := address.Parse(msg.Address, address.ParseDefaults{})
	if err != nil {
		return s.errorMessage(status.NotFound, nil)
	}

	key := addr.Render(address.MaskRoute, "", "")
	route, ok := s.routes[key]
	if !ok {
		return s.errorMessage(status.NotFound, nil)
	}

	mimetype := msg.Mimetype
	if mimetype == "none" {
		mimetype = ""
	}
	cfg := s.config
	cfg.Codec = s.codecFor(mimetype)

	req := &pipeline.Request{
		Address:    addr,
		Context:    msg.Context,
		SubjectKey: addr.Subject.Value,
		Mimetype:   mimetype,
		Raw:        msg.Data,
	}
	resp := pipeline.Run(cfg, route.Controller, route.Endpoint, req)
	return s.toMessage(resp)
}

func (s *Server) codecFor(mimetype string) pipeline.Codec {
	if c, ok := s.codecs[mimetype]; ok {
		return c
	}
	return s.codecs[s.defaultMimetype]
}

func (s *Server) errorMessage(st status.Status, data map[string]any) *Message {
	resp := &pipeline.Response{Status: st}
	if data != nil {
		resp.Data = data
	}
	return s.toMessage(resp)
}

func (s *Server) toMessage(resp *pipeline.Response) *Message {
	if resp.Data == nil {
		return &Message{Address: string(resp.Status), Mimetype: "none", Context: resp.Context}
	}
	mimetype := s.defaultMimetype
	raw, err := s.codecs[mimetype].Encode(mimetype, resp.Data)
	if err != nil {
		return &Message{Address: string(status.ServerError), Mimetype: "none"}
	}
	return &Message{Address: string(resp.Status), Mimetype: mimetype, Context: resp.Context, Data: raw}
}
