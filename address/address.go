// Package address implements the versioned, multi-level path scheme used to
// uniquely name every endpoint across nested bundles. It is grounded on
// arterial-io/mesh's address.py: the same component set, the same textual
// grammar, and the same signature/render/extend semantics.
package address

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a (major, minor) bundle version pair.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// ParseVersion parses a "major.minor" string into a Version.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("address: invalid version %q", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, fmt.Errorf("address: invalid version %q", s)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, fmt.Errorf("address: invalid version %q", s)
	}
	return Version{Major: maj, Minor: min}, nil
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// Segment is one (name, version) link in a bundle chain.
type Segment struct {
	Name    string
	Version Version
}

// Subject holds either a concrete subject value or the "wildcard" marker
// (Python's `subject is True`): present in the address shape but unbound
// until a caller supplies a concrete value at render time.
type Subject struct {
	Wildcard bool
	Value    string
}

// Set reports whether the subject carries any information at all.
func (s Subject) Set() bool { return s.Wildcard || s.Value != "" }

func lit(v string) Subject { return Subject{Value: v} }

// Wildcard is the address-shape placeholder meaning "a subject belongs here,
// bind it at render time."
var Wildcard = Subject{Wildcard: true}

// Address is the canonical identifier of an endpoint instance: an ordered
// tuple of endpoint name, prefix, bundle chain, resource, subject,
// subresource, subsubject, and format hint. Addresses are value objects;
// Clone and Extend always return a new Address.
type Address struct {
	Endpoint    string
	Prefix      string
	Bundle      []Segment
	Resource    string
	Subject     Subject
	Subresource string
	Subsubject  Subject
	Format      string
}

// Valid reports whether endpoint, bundle chain, and resource are all present.
func (a Address) Valid() bool {
	return a.Endpoint != "" && len(a.Bundle) > 0 && a.Resource != ""
}

// Signature is the address tuple with trailing empty/unset components
// stripped, used as a stable cache and equality key.
type Signature struct {
	Endpoint    string
	Prefix      string
	Bundle      string
	Resource    string
	Subject     string
	Subresource string
	Subsubject  string
	Format      string
	depth       int
}

// Key renders the signature to a single comparable string.
func (s Signature) Key() string {
	parts := []string{s.Endpoint, s.Prefix, s.Bundle, s.Resource, s.Subject, s.Subresource, s.Subsubject, s.Format}
	return strings.Join(parts[:s.depth], "\x1f")
}

func bundleKey(bundle []Segment) string {
	var b strings.Builder
	for _, seg := range bundle {
		fmt.Fprintf(&b, "/%s/%s", seg.Name, seg.Version)
	}
	return b.String()
}

// Signature computes a's signature: the full component tuple with trailing
// unset values stripped.
func (a Address) Signature() Signature {
	vals := [8]string{
		a.Endpoint,
		a.Prefix,
		bundleKey(a.Bundle),
		a.Resource,
		subjectKey(a.Subject),
		a.Subresource,
		subjectKey(a.Subsubject),
		a.Format,
	}
	depth := len(vals)
	for depth > 0 && vals[depth-1] == "" {
		depth--
	}
	return Signature{
		Endpoint: vals[0], Prefix: vals[1], Bundle: vals[2], Resource: vals[3],
		Subject: vals[4], Subresource: vals[5], Subsubject: vals[6], Format: vals[7],
		depth: depth,
	}
}

func subjectKey(s Subject) string {
	if s.Wildcard {
		return "*"
	}
	return s.Value
}

// Clone returns a copy of a with any supplied overrides applied.
func (a Address) Clone(overrides func(*Address)) Address {
	clone := a
	clone.Bundle = append([]Segment(nil), a.Bundle...)
	if overrides != nil {
		overrides(&clone)
	}
	return clone
}

// Extend appends segments to the bundle chain, returning a new Address; the
// receiver is left unmodified.
func (a Address) Extend(segments ...Segment) Address {
	clone := a
	clone.Bundle = append(append([]Segment(nil), a.Bundle...), segments...)
	return clone
}

// Mask selects which address components Render includes. Each letter stands
// for one component, matching the teacher source's mnemonic: e(ndpoint)
// p(refix) b(undle) r(esource) s(ubject) u(subresource) v(subsubject)
// f(ormat).
type Mask string

// Standard masks used throughout the framework.
const (
	// MaskFull renders every component: the canonical textual address form.
	MaskFull Mask = "ebrsuvf"
	// MaskWire renders the wire/routing path, including the prefix.
	MaskWire Mask = "pbrsuvf"
	// MaskRoute is the routing-table lookup key: endpoint + bundle + resource.
	MaskRoute Mask = "ebr"
)

func (m Mask) has(c byte) bool { return strings.IndexByte(string(m), c) >= 0 }

// Render produces the textual form of a restricted to mask, optionally
// binding a wildcard subject/subsubject to concrete values.
func (a Address) Render(mask Mask, subject, subsubject string) string {
	var b strings.Builder

	if mask.has('e') && a.Endpoint != "" {
		b.WriteString(a.Endpoint)
		b.WriteString("::")
	}
	if mask.has('p') && a.Prefix != "" {
		b.WriteString(a.Prefix)
	}
	if mask.has('b') {
		for _, seg := range a.Bundle {
			fmt.Fprintf(&b, "/%s/%s", seg.Name, seg.Version)
		}
	}
	if mask.has('r') && a.Resource != "" {
		b.WriteString("/")
		b.WriteString(a.Resource)
	}
	if mask.has('s') && a.Subject.Set() {
		if a.Subject.Wildcard {
			if subject != "" {
				b.WriteString("/")
				b.WriteString(subject)
			}
		} else {
			v := a.Subject.Value
			if subject != "" {
				v = subject
			}
			b.WriteString("/")
			b.WriteString(v)
		}
	}
	if mask.has('u') && a.Subresource != "" {
		b.WriteString("/")
		b.WriteString(a.Subresource)
	}
	if mask.has('v') && a.Subsubject.Set() {
		if a.Subsubject.Wildcard {
			if subsubject != "" {
				b.WriteString("/")
				b.WriteString(subsubject)
			}
		} else {
			v := a.Subsubject.Value
			if subsubject != "" {
				v = subsubject
			}
			b.WriteString("/")
			b.WriteString(v)
		}
	}
	if mask.has('f') && a.Format != "" {
		b.WriteString("!")
		b.WriteString(a.Format)
	}
	return b.String()
}

// String renders the full canonical textual address.
func (a Address) String() string { return a.Render(MaskFull, "", "") }

// PrefixedPath renders the wire path (prefix + bundle chain + resource +
// subject + subresource + subsubject + format), as used by the HTTP
// transport's routing table.
func (a Address) PrefixedPath() string { return a.Render(MaskWire, "", "") }

var (
	bundleSegmentExpr = regexp.MustCompile(`/([\w.]+)/(\d+)\.(\d+)`)
)

// addressExpr is built per-prefix since the prefix is embedded literally in
// the pattern, exactly mirroring AddressParser's per-prefix expression cache.
func addressExpr(prefix string) *regexp.Regexp {
	pattern := `^(?:(?P<endpoint>[A-Za-z]+)::)?` +
		regexp.QuoteMeta(prefix) +
		`(?P<bundle>(?:/[\w.]+/\d+\.\d+)+)` +
		`(?:/(?P<resource>[\w.]+)` +
		`(?:/(?P<subject>[-.:;\w]+)` +
		`(?:/(?P<subresource>[\w.]+)` +
		`(?:/(?P<subsubject>[-.:;\w]+))?` +
		`)?` +
		`)?` +
		`)?` +
		`(?:!(?P<format>\w+))?` +
		`/?$`
	return regexp.MustCompile(pattern)
}

// ParseDefaults supplies fallback component values used when the textual
// address omits a segment the grammar makes optional (mirroring the
// **params fallback in AddressParser.parse).
type ParseDefaults struct {
	Prefix      string
	Endpoint    string
	Resource    string
	Subject     string
	Subresource string
	Subsubject  string
	Format      string
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Parse parses a textual address against the routing prefix in defaults,
// falling back to the other defaults fields for any component the grammar
// leaves optional and the text omits. It returns an error if the address
// does not match the expected grammar.
func Parse(text string, defaults ParseDefaults) (Address, error) {
	expr := addressExpr(defaults.Prefix)
	m := expr.FindStringSubmatch(text)
	if m == nil {
		return Address{}, fmt.Errorf("address: invalid address %q", text)
	}
	names := expr.SubexpNames()
	group := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			group[name] = m[i]
		}
	}

	var bundle []Segment
	for _, seg := range bundleSegmentExpr.FindAllStringSubmatch(group["bundle"], -1) {
		major, _ := strconv.Atoi(seg[2])
		minor, _ := strconv.Atoi(seg[3])
		bundle = append(bundle, Segment{Name: seg[1], Version: Version{Major: major, Minor: minor}})
	}

	a := Address{
		Endpoint:    firstNonEmpty(group["endpoint"], defaults.Endpoint),
		Prefix:      defaults.Prefix,
		Bundle:      bundle,
		Resource:    firstNonEmpty(group["resource"], defaults.Resource),
		Subresource: firstNonEmpty(group["subresource"], defaults.Subresource),
		Format:      firstNonEmpty(group["format"], defaults.Format),
	}
	if subj := firstNonEmpty(group["subject"], defaults.Subject); subj != "" {
		a.Subject = lit(subj)
	}
	if subsubj := firstNonEmpty(group["subsubject"], defaults.Subsubject); subsubj != "" {
		a.Subsubject = lit(subsubj)
	}
	return a, nil
}
