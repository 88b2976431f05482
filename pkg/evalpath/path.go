// Package evalpath normalizes the three surface forms a reference path can
// take in a schema (a fragment-prefixed pointer "#/a/b", a dotted
// notation "a.b", or a raw JSON pointer "/a/b") into one canonical
// pointer form, and resolves a canonical path against a value tree.
//
// The canonical form is the only representation the rest of the engine
// ever deals with: every surface form is normalized once, at compile time,
// so the evaluator never has to re-parse a path while executing.
package evalpath

import (
	"strconv"
	"strings"
)

// reservedSigils are path segments which are preserved verbatim as the
// first segment of a canonical path, rather than being treated as an
// ordinary field name. They name the ambient views (context, params) an
// expression can read alongside user data.
var reservedSigils = map[string]bool{
	"$context": true,
	"$params":  true,
	"$":        true,
}

// Path is a canonical reference path: an ordered list of segments, each
// either a field name or a decimal array index. The root is the path with
// zero segments.
type Path struct {
	segments []string
}

// Root returns the canonical path denoting the document root.
func Root() Path {
	return Path{}
}

// FromSegments builds a canonical path directly from already-unescaped
// segments, bypassing surface-form normalization.
func FromSegments(segments ...string) Path {
	cp := make([]string, len(segments))
	copy(cp, segments)
	return Path{cp}
}

// Normalize converts any of the three accepted surface forms into a
// canonical Path. An empty string normalizes to the root.
func Normalize(raw string) Path {
	switch {
	case raw == "":
		return Root()
	case strings.HasPrefix(raw, "#/"):
		return parsePointer(raw[1:])
	case strings.HasPrefix(raw, "#"):
		return parsePointer(raw[1:])
	case strings.HasPrefix(raw, "/"):
		return parsePointer(raw)
	case strings.Contains(raw, ".") && !strings.Contains(raw, "/"):
		return parseDotted(raw)
	default:
		// A bare segment with neither a leading slash nor a dot, e.g. a
		// single field name: treat as a one-segment canonical path.
		return Path{[]string{raw}}
	}
}

func parsePointer(pointer string) Path {
	if pointer == "" {
		return Root()
	}
	raw := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	segments := make([]string, len(raw))
	for i, s := range raw {
		segments[i] = unescapeSegment(s)
	}
	return Path{segments}
}

func parseDotted(dotted string) Path {
	parts := strings.Split(dotted, ".")
	if len(parts) > 0 && reservedSigils[parts[0]] {
		return Path{parts}
	}
	return Path{parts}
}

func unescapeSegment(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}

func escapeSegment(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

// IsRoot reports whether this path denotes the document root.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth returns the number of segments in this path.
func (p Path) Depth() int {
	return len(p.segments)
}

// Segments returns the unescaped segments making up this path. The
// returned slice must not be mutated by the caller.
func (p Path) Segments() []string {
	return p.segments
}

// Head returns the first (outermost) segment of this path.
func (p Path) Head() string {
	return p.segments[0]
}

// Tail returns the last (innermost) segment of this path.
func (p Path) Tail() string {
	return p.segments[len(p.segments)-1]
}

// Parent returns the path with its innermost segment removed. Calling
// Parent on the root panics, matching the invariant that callers check
// IsRoot first.
func (p Path) Parent() Path {
	if p.IsRoot() {
		panic("evalpath: root has no parent")
	}
	return Path{p.segments[:len(p.segments)-1]}
}

// Extend returns this path with an additional innermost segment.
func (p Path) Extend(tail string) Path {
	next := make([]string, len(p.segments)+1)
	copy(next, p.segments)
	next[len(p.segments)] = tail
	return Path{next}
}

// HasPrefix reports whether other starts with all of this path's segments.
func (p Path) HasPrefix(other Path) bool {
	if len(p.segments) > len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if s != other.segments[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two canonical paths denote the same location.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if s != other.segments[i] {
			return false
		}
	}
	return true
}

// IsContextRooted reports whether this path is rooted in one of the
// reserved ambient-view sigils ($context, $params, or $).
func (p Path) IsContextRooted() bool {
	return !p.IsRoot() && reservedSigils[p.segments[0]]
}

// String renders the canonical pointer form: a leading "/" followed by
// "/"-separated, individually escaped segments. The root renders as "".
func (p Path) String() string {
	if p.IsRoot() {
		return ""
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		b.WriteString(escapeSegment(s))
	}
	return b.String()
}

// Dotted renders the dotted surface form of this path (used for the
// layout resolver's $fullpath attribute).
func (p Path) Dotted() string {
	return strings.Join(p.segments, ".")
}

// Get resolves this path against a value tree (nested map[string]any /
// []any), walking each segment in turn. Array-index segments are parsed
// as decimal integers. Returns the resolved value and true, or nil and
// false if any segment along the way is missing.
func Get(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p.segments {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// GetPropertiesAware behaves like Get, but additionally collapses an
// intermediate "properties" segment when the next segment does not
// itself resolve directly, mirroring the way JSON-Schema-style nested
// schemas place field definitions under a "properties" object. This is
// used when walking the *evaluated schema* view rather than working data.
func GetPropertiesAware(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p.segments {
		next, ok := step(cur, seg)
		if !ok {
			if m, isMap := cur.(map[string]any); isMap {
				if props, hasProps := m["properties"]; hasProps {
					next, ok = step(props, seg)
				}
			}
		}
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}
