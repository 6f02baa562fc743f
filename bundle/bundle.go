// Package bundle implements mount-version collation and recursive bundle
// nesting: the tree that groups resources into a single addressable surface
// across independently-versioned mounts. It is grounded on arterial-io/
// mesh's bundle.py, with the dynamic resource/controller import machinery
// (mount.construct importing strings via import_object) replaced by
// explicit, statically-typed Mount/RecursiveMount values, per spec §9
// "Replacing dynamic metaclass composition."
package bundle

import (
	"fmt"
	"sort"

	"github.com/go-mizu/reef/address"
	"github.com/go-mizu/reef/endpoint"
	"github.com/go-mizu/reef/resource"
)

// Candidate is one named slot at a bundle version: either a resource bound
// to a controller, or a nested Bundle.
type Candidate struct {
	Resource   *resource.Resource
	Controller *resource.Controller
	Nested     *Bundle
}

// IsBundle reports whether the candidate is a nested bundle rather than a
// resource/controller pair.
func (c Candidate) IsBundle() bool { return c.Nested != nil }

// Source mounts resources (or nested bundles) into a Bundle across a
// version range. Mount and RecursiveMount are the two built-in
// implementations, mirroring the teacher source's mount/recursive_mount
// subclass pair.
type Source interface {
	// Construct validates the source and computes the version set it
	// contributes. It must run once before Versions/Get are called.
	Construct() error
	// Versions returns the sorted set of versions this source contributes.
	Versions() []address.Version
	// Get returns the name and candidate this source contributes at v, by
	// binding to the newest contributing version not greater than v.
	Get(v address.Version) (name string, candidate Candidate, ok bool)
	// Clone returns an unconstructed copy of the source, used by
	// Bundle.Clone.
	Clone() Source
}

// Mount binds one resource's versioned controller set into a bundle,
// optionally restricted to a [MinVersion, MaxVersion] range.
type Mount struct {
	Resource    *resource.Resource
	Controllers map[address.Version]*resource.Controller
	MinVersion  *address.Version
	MaxVersion  *address.Version

	versions []address.Version
}

// Construct validates the mount's version range against its controller set
// and computes the versions it contributes.
func (m *Mount) Construct() error {
	if len(m.Controllers) == 0 {
		return fmt.Errorf("bundle: mount for resource %q has no controllers", m.Resource.Name)
	}
	keys := make([]address.Version, 0, len(m.Controllers))
	for v := range m.Controllers {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	min := keys[0]
	if m.MinVersion != nil {
		if _, ok := m.Controllers[*m.MinVersion]; !ok {
			return fmt.Errorf("bundle: mount for resource %q declares unknown minimum version %s", m.Resource.Name, *m.MinVersion)
		}
		min = *m.MinVersion
	}
	max := keys[len(keys)-1]
	if m.MaxVersion != nil {
		if _, ok := m.Controllers[*m.MaxVersion]; !ok {
			return fmt.Errorf("bundle: mount for resource %q declares unknown maximum version %s", m.Resource.Name, *m.MaxVersion)
		}
		max = *m.MaxVersion
	}
	if max.Less(min) {
		return fmt.Errorf("bundle: mount for resource %q has maximum version %s below minimum %s", m.Resource.Name, max, min)
	}

	m.versions = nil
	for _, v := range keys {
		if !v.Less(min) && !max.Less(v) {
			m.versions = append(m.versions, v)
		}
	}
	return nil
}

// Versions returns the sorted set of versions this mount contributes.
func (m *Mount) Versions() []address.Version { return m.versions }

// Get returns the resource/controller pair bound at the newest contributing
// version not greater than v.
func (m *Mount) Get(v address.Version) (string, Candidate, bool) {
	for i := len(m.versions) - 1; i >= 0; i-- {
		candidate := m.versions[i]
		if !v.Less(candidate) {
			c := m.Controllers[candidate]
			return m.Resource.Name, Candidate{Resource: c.Resource, Controller: c}, true
		}
	}
	return "", Candidate{}, false
}

// Clone returns an unconstructed copy of m.
func (m *Mount) Clone() Source {
	return &Mount{Resource: m.Resource, Controllers: m.Controllers, MinVersion: m.MinVersion, MaxVersion: m.MaxVersion}
}

// RecursiveMount nests a family of bundles, one per version, into a parent
// bundle.
type RecursiveMount struct {
	Bundles map[address.Version]*Bundle

	versions []address.Version
}

// Construct computes the sorted version set Bundles contributes.
func (m *RecursiveMount) Construct() error {
	if len(m.Bundles) == 0 {
		return fmt.Errorf("bundle: recursive mount has no nested bundles")
	}
	keys := make([]address.Version, 0, len(m.Bundles))
	for v := range m.Bundles {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	m.versions = keys
	return nil
}

// Versions returns the sorted set of versions this recursive mount
// contributes.
func (m *RecursiveMount) Versions() []address.Version { return m.versions }

// Get returns the nested bundle bound at the newest contributing version
// not greater than v.
func (m *RecursiveMount) Get(v address.Version) (string, Candidate, bool) {
	for i := len(m.versions) - 1; i >= 0; i-- {
		candidate := m.versions[i]
		if !v.Less(candidate) {
			b := m.Bundles[candidate]
			return b.Name, Candidate{Nested: b}, true
		}
	}
	return "", Candidate{}, false
}

// Clone returns an unconstructed copy of m.
func (m *RecursiveMount) Clone() Source {
	return &RecursiveMount{Bundles: m.Bundles}
}

// Bundle groups Sources into a single versioned, addressable tree: at each
// version it contributes, every Source's candidate is merged into one flat
// name->Candidate map, with older bundle versions binding to older
// controllers and newer versions inheriting the newest controller whose
// version does not exceed the bundle version.
type Bundle struct {
	Name        string
	Description string

	sources  []Source
	Ordering []address.Version
	Versions map[address.Version]map[string]Candidate
}

// New constructs a Bundle from name and the supplied sources, running
// Construct on each and collating their contributed versions.
func New(name, description string, sources ...Source) (*Bundle, error) {
	b := &Bundle{Name: name, Description: description}
	if err := b.Attach(sources...); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach constructs and merges additional sources into b, re-collating the
// version table.
func (b *Bundle) Attach(sources ...Source) error {
	for _, s := range sources {
		if err := s.Construct(); err != nil {
			return err
		}
		b.sources = append(b.sources, s)
	}
	if len(b.sources) > 0 {
		return b.collate()
	}
	return nil
}

// collate mirrors Bundle._collate_mounts: the union of every source's
// contributed versions becomes the bundle's ordering, and at each version
// every source's candidate is merged into that version's name map. Two
// sources contributing the same name at the same version is a
// specification error.
func (b *Bundle) collate() error {
	seen := map[address.Version]bool{}
	var ordering []address.Version
	for _, s := range b.sources {
		for _, v := range s.Versions() {
			if !seen[v] {
				seen[v] = true
				ordering = append(ordering, v)
			}
		}
	}
	sort.Slice(ordering, func(i, j int) bool { return ordering[i].Less(ordering[j]) })
	b.Ordering = ordering
	b.Versions = make(map[address.Version]map[string]Candidate, len(ordering))

	for _, s := range b.sources {
		for _, v := range ordering {
			name, cand, ok := s.Get(v)
			if !ok {
				continue
			}
			bucket, exists := b.Versions[v]
			if !exists {
				bucket = map[string]Candidate{}
				b.Versions[v] = bucket
			}
			if _, collide := bucket[name]; collide {
				return fmt.Errorf("bundle: %q has colliding mounts named %q at version %s", b.Name, name, v)
			}
			bucket[name] = cand
		}
	}
	return nil
}

// Clone returns a new Bundle with the same sources re-constructed under
// name (defaulting to b.Name). If transform is non-nil, it is applied to
// each cloned source; a nil return drops that source from the clone,
// mirroring Bundle.clone's optional transformer.
func (b *Bundle) Clone(name string, transform func(Source) Source) (*Bundle, error) {
	if name == "" {
		name = b.Name
	}
	cloned := make([]Source, 0, len(b.sources))
	for _, s := range b.sources {
		c := s.Clone()
		if transform != nil {
			c = transform(c)
			if c == nil {
				continue
			}
		}
		cloned = append(cloned, c)
	}
	return New(name, b.Description, cloned...)
}

// Slice returns the versions matching the given constraints: an exact
// version if supplied, otherwise the ordering bounded by min/max.
func (b *Bundle) Slice(version, minVersion, maxVersion *address.Version) []address.Version {
	if version != nil {
		if _, ok := b.Versions[*version]; ok {
			return []address.Version{*version}
		}
		return nil
	}

	versions := append([]address.Version(nil), b.Ordering...)
	if minVersion != nil {
		i := 0
		for i < len(versions) && versions[i].Less(*minVersion) {
			i++
		}
		versions = versions[i:]
	}
	if maxVersion != nil {
		i := len(versions)
		for i > 0 && maxVersion.Less(versions[i-1]) {
			i--
		}
		versions = versions[:i]
	}
	return versions
}

// EnumerateResources yields every (address, resource, controller) triple
// reachable from b, recursing into nested bundles and extending the address
// chain with each bundle segment along the way.
func (b *Bundle) EnumerateResources(base address.Address) []ResourceEntry {
	var entries []ResourceEntry
	for _, v := range b.Ordering {
		sub := base.Extend(address.Segment{Name: b.Name, Version: v})
		names := make([]string, 0, len(b.Versions[v]))
		for name := range b.Versions[v] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cand := b.Versions[v][name]
			if cand.IsBundle() {
				entries = append(entries, cand.Nested.EnumerateResources(sub)...)
				continue
			}
			entries = append(entries, ResourceEntry{
				Address:    sub.Clone(func(a *address.Address) { a.Resource = cand.Resource.Name }),
				Resource:   cand.Resource,
				Controller: cand.Controller,
			})
		}
	}
	return entries
}

// ResourceEntry pairs a fully-addressed resource with its bound controller.
type ResourceEntry struct {
	Address    address.Address
	Resource   *resource.Resource
	Controller *resource.Controller
}

// EndpointRoute pairs a fully-addressed endpoint with its resource and
// bound controller, the shape every transport's routing table is built
// from.
type EndpointRoute struct {
	Address    address.Address
	Resource   *resource.Resource
	Controller *resource.Controller
	Endpoint   endpoint.Endpoint
}

// EnumerateEndpoints yields every endpoint reachable from b, composing
// EnumerateResources with each resource's own EnumerateEndpoints.
func (b *Bundle) EnumerateEndpoints(base address.Address) []EndpointRoute {
	var routes []EndpointRoute
	for _, re := range b.EnumerateResources(base) {
		for _, ee := range re.Resource.EnumerateEndpoints(re.Address) {
			routes = append(routes, EndpointRoute{
				Address:    ee.Address,
				Resource:   re.Resource,
				Controller: re.Controller,
				Endpoint:   ee.Endpoint,
			})
		}
	}
	return routes
}

// Describe returns a serializable description of b, mirroring
// Bundle.describe: one entry per version, each holding either a nested
// bundle description or a resource description. omissions is forwarded to
// every resource (and, recursively, every nested bundle) described, per
// spec §9's resolution of describe's omissions parameter.
func (b *Bundle) Describe(base address.Address, verbose bool, omissions []string) map[string]any {
	d := map[string]any{"__subject__": "bundle", "name": b.Name}
	if b.Description != "" || verbose {
		d["description"] = b.Description
	}
	if len(base.Bundle) == 0 {
		d["__version__"] = 1
	}

	versions := make(map[string]any, len(b.Ordering))
	for _, v := range b.Ordering {
		sub := base.Extend(address.Segment{Name: b.Name, Version: v})
		names := make([]string, 0, len(b.Versions[v]))
		for name := range b.Versions[v] {
			names = append(names, name)
		}
		sort.Strings(names)

		items := make(map[string]any, len(names))
		for _, name := range names {
			cand := b.Versions[v][name]
			if cand.IsBundle() {
				items[name] = cand.Nested.Describe(sub, verbose, omissions)
			} else {
				items[name] = cand.Resource.Describe(cand.Controller, verbose, omissions)
			}
		}
		versions[v.String()] = items
	}
	d["versions"] = versions
	return d
}
