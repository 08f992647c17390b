package bdispatch

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// methodSet is the set of request methods a route accepts. Methods are open tokens compared exactly.
type methodSet struct {
	any     bool
	methods []string
}

func (m methodSet) accepts(method string) bool {
	return m.any || slices.Contains(m.methods, method)
}

func (m methodSet) overlaps(o methodSet) bool {
	if m.any || o.any {
		return true
	}

	for _, method := range m.methods {
		if o.accepts(method) {
			return true
		}
	}

	return false
}

func (m methodSet) String() string {
	if m.any {
		return "*"
	}

	return strings.Join(m.methods, ",")
}

// node is a segment trie node. Parameter and wildcard names are kept on the routes, so routes that only
// differ in parameter names share nodes.
type node struct {
	literals map[string]*node
	param    *node
	wildcard *node
	routes   []int
}

func newNode() *node {
	return &node{literals: map[string]*node{}}
}

func (n *node) insert(p pattern, route int) {
	cur := n
	for _, seg := range p.segs {
		switch seg.kind {
		case segmentLiteral:
			next, ok := cur.literals[seg.value]
			if !ok {
				next = newNode()
				cur.literals[seg.value] = next
			}

			cur = next
		case segmentParam:
			if cur.param == nil {
				cur.param = newNode()
			}

			cur = cur.param
		case segmentWildcard:
			if cur.wildcard == nil {
				cur.wildcard = newNode()
			}

			cur = cur.wildcard
		}
	}

	cur.routes = append(cur.routes, route)
}

// lookup is the state of a single match attempt.
type lookup struct {
	routes  []routeData
	method  string
	segs    []string
	values  []string
	matched int
	allowed []string
	hit     int
}

// walk tries literal children before the parameter child before the wildcard child and backtracks
// when a branch yields no route accepting the method.
func (l *lookup) walk(n *node, i int) bool {
	if i == len(l.segs) {
		return l.terminal(n)
	}

	seg := l.segs[i]
	if next, ok := n.literals[seg]; ok && l.walk(next, i+1) {
		return true
	}

	if n.param != nil && seg != "" {
		l.values = append(l.values, seg)
		if l.walk(n.param, i+1) {
			return true
		}

		l.values = l.values[:len(l.values)-1]
	}

	if n.wildcard != nil {
		l.values = append(l.values, strings.Join(l.segs[i:], "/"))
		if l.terminal(n.wildcard) {
			return true
		}

		l.values = l.values[:len(l.values)-1]
	}

	return false
}

func (l *lookup) terminal(n *node) bool {
	for _, idx := range n.routes {
		if l.hit < 0 {
			l.hit = idx
		}

		rt := l.routes[idx]
		if rt.methods.accepts(l.method) {
			l.matched = idx
			return true
		}

		l.allowed = append(l.allowed, rt.methods.methods...)
	}

	return false
}

// find returns the index of the matched route and the captured values in path order. When no route
// matched, hit is the first route that matched the path but not the method, or -1.
func find(root *node, routes []routeData, method string, segs []string) (idx int, values []string, hit int, allowed []string) {
	l := lookup{routes: routes, method: method, segs: segs, matched: -1, hit: -1}
	if l.walk(root, 0) {
		return l.matched, l.values, l.matched, nil
	}

	return -1, nil, l.hit, lo.Uniq(l.allowed)
}
