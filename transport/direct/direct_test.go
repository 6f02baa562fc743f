package direct

import (
	"testing"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/bundle"
	"github.com/go-mizu/reef/field"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/resource"
	"github.com/go-mizu/reef/standard"
	"github.com/go-mizu/reef/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWidgetBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	cfg := resource.NewConfiguration()
	standard.Register(cfg)

	r, err := resource.Build(cfg, resource.Declaration{
		Name:  "widget",
		Major: 1,
		Schema: field.Schema{
			"label": field.Field{Kind: field.KindText, Required: true},
		},
	})
	require.NoError(t, err)

	handlers := map[string]resource.Handler{
		// The create response schema requires the identifier, so the echo
		// adds one to the submitted data.
		"create": func(req *resource.Request) (any, error) {
			out := map[string]any{"id": 1}
			data, _ := req.Data.(map[string]any)
			for k, v := range data {
				out[k] = v
			}
			return out, nil
		},
	}
	c, err := resource.NewController(r, address.Version{Major: 1, Minor: 0}, handlers)
	require.NoError(t, err)

	b, err := bundle.New("widgets", "", &bundle.Mount{
		Resource:    r,
		Controllers: map[address.Version]*resource.Controller{{Major: 1, Minor: 0}: c},
	})
	require.NoError(t, err)
	return b
}

func TestCallDispatchesToEndpoint(t *testing.T) {
	b := buildWidgetBundle(t)
	s := New(b, pipeline.Config{})

	addr := address.Address{
		Bundle:   []address.Segment{{Name: "widgets", Version: address.Version{Major: 1, Minor: 0}}},
		Resource: "widget",
		Endpoint: "create",
	}
	resp, err := s.Call(addr, "", map[string]any{"label": "a widget"})
	require.NoError(t, err)
	assert.Equal(t, status.OK, resp.Status)
	assert.Equal(t, "a widget", resp.Data.(map[string]any)["label"])
}

func TestCallReturnsInvalidOnSchemaViolation(t *testing.T) {
	b := buildWidgetBundle(t)
	s := New(b, pipeline.Config{})

	addr := address.Address{
		Bundle:   []address.Segment{{Name: "widgets", Version: address.Version{Major: 1, Minor: 0}}},
		Resource: "widget",
		Endpoint: "create",
	}
	resp, err := s.Call(addr, "", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, status.Invalid, resp.Status)
}

func TestCallUnknownRouteErrors(t *testing.T) {
	b := buildWidgetBundle(t)
	s := New(b, pipeline.Config{})

	addr := address.Address{
		Bundle:   []address.Segment{{Name: "widgets", Version: address.Version{Major: 1, Minor: 0}}},
		Resource: "gizmo",
		Endpoint: "create",
	}
	_, err := s.Call(addr, "", nil)
	assert.Error(t, err)
}
