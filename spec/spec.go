// Package spec implements the Specification artifact: a reconstructed,
// queryable view of a bundle's description, with an ebr-keyed lookup
// cache. It is grounded on arterial-io/mesh's bundle.py Specification
// class: the same describe-then-reconstruct split, the same find()
// traversal, the same signature cache.
package spec

import (
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/bundle"
)

// Specification is the self-contained, serializable view of a bundle tree
// produced by Bundle.Describe, reconstructed so that version keys are
// address.Version values instead of "major.minor" strings and lookups by
// address are cached. It is what a client holds after fetching a remote
// bundle's description, or what a server exposes for introspection.
type Specification struct {
	Name        string
	Description string
	Versions    map[address.Version]map[string]any

	cache map[string]map[string]any
}

// FromBundle builds a Specification directly from a live bundle, describing
// it fully (verbose, no omissions).
func FromBundle(b *bundle.Bundle) (*Specification, error) {
	return New(b.Describe(address.Address{}, true, nil))
}

// New reconstructs a Specification from a bundle description: the output
// of Bundle.Describe, or the equivalent structure decoded off the wire
// (e.g. via msgpack, which also unmarshals into map[string]any).
func New(description map[string]any) (*Specification, error) {
	name, _ := description["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("spec: description has no name")
	}

	s := &Specification{Name: name, cache: map[string]map[string]any{}}
	if desc, ok := description["description"].(string); ok {
		s.Description = desc
	}

	raw, _ := description["versions"].(map[string]any)
	versions, err := parseVersions(raw)
	if err != nil {
		return nil, err
	}
	s.Versions = versions
	return s, nil
}

// parseVersions parses a "major.minor"-keyed map into an address.Version-
// keyed one, recursing into any nested bundle's own "versions" map in
// place, mirroring Specification._parse_bundle/_parse_resource.
func parseVersions(raw map[string]any) (map[address.Version]map[string]any, error) {
	out := make(map[address.Version]map[string]any, len(raw))
	for key, val := range raw {
		v, err := address.ParseVersion(key)
		if err != nil {
			return nil, fmt.Errorf("spec: %w", err)
		}
		resources, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("spec: version %q has malformed contents", key)
		}
		for _, candidate := range resources {
			if err := parseNestedBundle(candidate); err != nil {
				return nil, err
			}
		}
		out[v] = resources
	}
	return out, nil
}

func parseNestedBundle(candidate any) error {
	entry, ok := candidate.(map[string]any)
	if !ok || entry["__subject__"] != "bundle" {
		return nil
	}
	raw, ok := entry["versions"].(map[string]any)
	if !ok {
		return nil
	}
	parsed, err := parseVersions(raw)
	if err != nil {
		return err
	}
	entry["versions"] = parsed
	return nil
}

// Encode renders s back to the wire-safe, string-keyed shape
// Bundle.Describe produces — the inverse of New/parseVersions — so a
// transport can serve a Specification it holds (rather than a live Bundle)
// to a client fetching the introspection endpoint.
func (s *Specification) Encode() map[string]any {
	d := map[string]any{"__subject__": "bundle", "name": s.Name}
	if s.Description != "" {
		d["description"] = s.Description
	}
	d["versions"] = encodeVersions(s.Versions)
	return d
}

func encodeVersions(versions map[address.Version]map[string]any) map[string]any {
	out := make(map[string]any, len(versions))
	for v, entry := range versions {
		encoded := make(map[string]any, len(entry))
		for name, candidate := range entry {
			encoded[name] = encodeNestedBundle(candidate)
		}
		out[v.String()] = encoded
	}
	return out
}

// encodeNestedBundle re-keys a nested bundle candidate's own "versions" map
// back to strings, mirroring parseNestedBundle's forward direction.
func encodeNestedBundle(candidate any) any {
	entry, ok := candidate.(map[string]any)
	if !ok || entry["__subject__"] != "bundle" {
		return candidate
	}
	nested, ok := entry["versions"].(map[address.Version]map[string]any)
	if !ok {
		return candidate
	}
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	out["versions"] = encodeVersions(nested)
	return out
}

// Find resolves addr against s: a bundle-chain walk down to the targeted
// resource, then (if addr names one) its endpoint, mirroring
// Specification.find. Results are cached by the endpoint+bundle+resource
// signature.
func (s *Specification) Find(addr address.Address) (map[string]any, error) {
	sig := addr.Render(address.MaskRoute, "", "")
	if cached, ok := s.cache[sig]; ok {
		return cached, nil
	}

	segments := addr.Bundle
	if len(segments) == 0 || segments[0].Name != s.Name {
		return nil, fmt.Errorf("spec: %q not found in %q", sig, s.Name)
	}

	subject, ok := s.Versions[segments[0].Version]
	if !ok {
		return nil, fmt.Errorf("spec: %q not found", sig)
	}

	for _, seg := range segments[1:] {
		entry, ok := subject[seg.Name]
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		nested, ok := entry.(map[string]any)
		if !ok || nested["__subject__"] != "bundle" {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		nestedVersions, ok := nested["versions"].(map[address.Version]map[string]any)
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		subject, ok = nestedVersions[seg.Version]
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
	}

	var result any = subject
	if addr.Resource != "" {
		entry, ok := subject[addr.Resource]
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		result = entry
	}
	if addr.Endpoint != "" {
		if addr.Resource == "" {
			return nil, fmt.Errorf("spec: %q requires a resource to resolve an endpoint", sig)
		}
		resourceEntry, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		endpoints, ok := resourceEntry["endpoints"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		e, ok := endpoints[addr.Endpoint]
		if !ok {
			return nil, fmt.Errorf("spec: %q not found", sig)
		}
		result = e
	}

	final, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("spec: %q resolved to a non-object", sig)
	}
	s.cache[sig] = final
	return final, nil
}
