package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/status"
	"github.com/go-mizu/reef/transport/mesh"
)

// MeshTransport calls a transport/mesh.Server over an already-dialed
// net.Conn, one request/response round trip at a time — the same
// serialization a ZeroMQ REQ socket enforces, which the mesh/1 protocol was
// adapted from.
type MeshTransport struct {
	Conn     net.Conn
	Mimetype string // defaults to "json"

	mu sync.Mutex
}

// NewMeshTransport returns a Transport speaking mesh/1 over conn, encoding
// requests as JSON.
func NewMeshTransport(conn net.Conn) *MeshTransport {
	return &MeshTransport{Conn: conn, Mimetype: "json"}
}

func (t *MeshTransport) Call(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	mimetype := t.Mimetype
	if mimetype == "" {
		mimetype = "json"
	}

	var raw []byte
	if req.Data != nil {
		encoded, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("client: encoding request: %w", err)
		}
		raw = encoded
	}

	addr := req.Address.Clone(func(a *address.Address) {
		if a.Subject.Wildcard {
			a.Subject = address.Subject{Value: req.SubjectKey}
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	out := mesh.Message{Address: addr.String(), Mimetype: mimetype, Context: req.Context, Data: raw}
	if err := mesh.WriteMessage(t.Conn, "req", out); err != nil {
		return nil, classifyConnectionError("mesh write", err)
	}

	role, msg, err := mesh.ReadMessage(t.Conn)
	if err != nil {
		return nil, classifyConnectionError("mesh read", err)
	}
	if role != "rep" {
		return nil, fmt.Errorf("client: mesh: expected a rep message, got %q", role)
	}

	resp := &pipeline.Response{Status: status.Status(msg.Address), Context: msg.Context}
	if len(msg.Data) > 0 {
		var data map[string]any
		if msg.Mimetype == "msgpack" {
			return nil, fmt.Errorf("client: msgpack response decoding is not wired on MeshTransport; use json")
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("client: decoding mesh response: %w", err)
		}
		resp.Data = data
	}
	return resp, nil
}
