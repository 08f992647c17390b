package bdispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Reverser keeps track of named patterns and allows building URLs.
type Reverser struct {
	pats map[string]pattern
}

// NewReverser inits the reverser.
func NewReverser() *Reverser {
	return &Reverser{make(map[string]pattern)}
}

// Reverse reverses the named pattern into a path. Values are substituted for the parameters in order
// and escaped. A wildcard value may contain slashes.
func (r Reverser) Reverse(name string, vals ...string) (string, error) {
	pat, ok := r.pats[name]
	if !ok {
		return "", fmt.Errorf("no pattern named: %q, got: %v", name, lo.Keys(r.pats)) //nolint:goerr113
	}

	if want := len(pat.paramNames()); want != len(vals) {
		return "", fmt.Errorf("failed to build %q: want %d value(s), got %d", name, want, len(vals)) //nolint:goerr113
	}

	var sb strings.Builder
	for _, seg := range pat.segs {
		sb.WriteByte('/')

		switch seg.kind {
		case segmentLiteral:
			sb.WriteString(seg.value)
		case segmentParam:
			if vals[0] == "" {
				return "", fmt.Errorf("failed to build %q: empty value for %q", name, seg.value) //nolint:goerr113
			}

			sb.WriteString(url.PathEscape(vals[0]))
			vals = vals[1:]
		case segmentWildcard:
			parts := strings.Split(vals[0], "/")
			sb.WriteString(strings.Join(lo.Map(parts, func(p string, _ int) string { return url.PathEscape(p) }), "/"))
			vals = vals[1:]
		}
	}

	if sb.Len() == 0 {
		return "/", nil
	}

	return sb.String(), nil
}

// Named is a convenience method that panics if naming the pattern fails.
func (r Reverser) Named(name, str string) string {
	str, err := r.NamedPattern(name, str)
	if err != nil {
		panic("bdispatch: " + err.Error())
	}

	return str
}

// NamedPattern will parse 's' as a path pattern while returning it as well.
func (r Reverser) NamedPattern(name, str string) (string, error) {
	if _, exists := r.pats[name]; exists {
		return str, fmt.Errorf("pattern with name %q already exists", name) //nolint:goerr113
	}

	pat, err := parsePattern(str)
	if err != nil {
		return str, fmt.Errorf("failed to parse pattern: %w", err)
	}

	r.pats[name] = pat

	return str, nil
}
