package bdispatch

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentParam
	segmentWildcard
)

// segment is one '/' separated part of a pattern. For parameters and wildcards the value is the name.
type segment struct {
	kind  segmentKind
	value string
}

// pattern is a parsed path pattern such as "/users/:id/files/*rest".
type pattern struct {
	raw  string
	segs []segment
}

// parsePattern parses a path pattern. Segments starting with ':' match exactly one non-empty path
// segment, a final segment starting with '*' matches one or more remaining segments.
func parsePattern(raw string) (pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return pattern{}, errors.Wrapf(ErrInvalidPattern, "%q: must start with '/'", raw)
	}

	parts := splitPath(raw)
	pat := pattern{raw: raw, segs: make([]segment, 0, len(parts))}
	names := map[string]struct{}{}

	for i, part := range parts {
		seg := segment{kind: segmentLiteral, value: part}

		switch {
		case strings.HasPrefix(part, ":"):
			seg = segment{kind: segmentParam, value: part[1:]}
		case strings.HasPrefix(part, "*"):
			if i != len(parts)-1 {
				return pattern{}, errors.Wrapf(ErrInvalidPattern, "%q: wildcard %q must be the last segment", raw, part)
			}

			seg = segment{kind: segmentWildcard, value: part[1:]}
		}

		if seg.kind != segmentLiteral {
			if seg.value == "" {
				return pattern{}, errors.Wrapf(ErrInvalidPattern, "%q: parameter without a name", raw)
			}

			if _, exists := names[seg.value]; exists {
				return pattern{}, errors.Wrapf(ErrInvalidPattern, "%q: duplicate parameter %q", raw, seg.value)
			}

			names[seg.value] = struct{}{}
		}

		pat.segs = append(pat.segs, seg)
	}

	return pat, nil
}

// shape identifies the set of paths a pattern matches, independent of parameter names.
func (p pattern) shape() string {
	var sb strings.Builder
	for _, s := range p.segs {
		switch s.kind {
		case segmentLiteral:
			sb.WriteString("/=")
			sb.WriteString(s.value)
		case segmentParam:
			sb.WriteString("/:")
		case segmentWildcard:
			sb.WriteString("/*")
		}
	}

	return sb.String()
}

// paramNames returns the parameter and wildcard names in path order.
func (p pattern) paramNames() (names []string) {
	for _, s := range p.segs {
		if s.kind != segmentLiteral {
			names = append(names, s.value)
		}
	}

	return names
}

// splitPath splits an absolute path into its segments. The root path has no segments and a trailing
// slash yields an empty final segment.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// joinPath appends a route path to a scope prefix. The path "/" stands for the prefix itself, so a
// prefix registered with a trailing slash keeps it.
func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "/":
		return prefix
	default:
		return strings.TrimSuffix(prefix, "/") + path
	}
}

// prefixMatches reports whether the leading segments of a path match the scope prefix.
func prefixMatches(prefix string, segs []string) bool {
	psegs := splitPath(strings.TrimSuffix(prefix, "/"))
	if len(psegs) > len(segs) {
		return false
	}

	for i, p := range psegs {
		switch {
		case strings.HasPrefix(p, "*"):
			return true
		case strings.HasPrefix(p, ":"):
			if segs[i] == "" {
				return false
			}
		case p != segs[i]:
			return false
		}
	}

	return true
}
