// Package routing maps request paths onto handlers through ordered, named
// route tables. Patterns capture path segments with <converter:name> tokens:
//
//	ticket/<str:id>/assign
//	ws/chatroom/<chatroom_name>/
//
// A table is matched in order and the first route whose pattern covers the
// whole path wins.
package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoReverseMatch is returned by Reverse when no route can build a path.
var ErrNoReverseMatch = errors.New("no reverse match")

// Params holds the values captured from a path, keyed by capture name.
type Params map[string]string

// Get returns the captured value for name or "" when absent.
func (p Params) Get(name string) string { return p[name] }

// Route binds a path pattern to a handler under a unique name.
type Route[H any] struct {
	Pattern string
	Handler H
	Name    string

	re       *regexp.Regexp
	segments []segment
}

type segment struct {
	literal   string
	capture   string
	converter converter
}

// Path declares a route. The pattern is compiled when the route is added to a table.
func Path[H any](pattern string, handler H, name string) Route[H] {
	return Route[H]{Pattern: pattern, Handler: handler, Name: name}
}

// Match is the result of a successful Resolve.
type Match[H any] struct {
	Route  *Route[H]
	Params Params
}

// Table is an ordered, immutable list of compiled routes.
type Table[H any] struct {
	routes []*Route[H]
	byName map[string]*Route[H]
}

// NewTable compiles the routes in order. Route names must be unique when set.
func NewTable[H any](routes ...Route[H]) (*Table[H], error) {
	t := &Table[H]{byName: make(map[string]*Route[H], len(routes))}
	for i := range routes {
		r := routes[i]
		if err := r.compile(); err != nil {
			return nil, err
		}
		if r.Name != "" {
			if _, dup := t.byName[r.Name]; dup {
				return nil, fmt.Errorf("route name %q is declared twice", r.Name)
			}
			t.byName[r.Name] = &r
		}
		t.routes = append(t.routes, &r)
	}
	return t, nil
}

// MustTable is like NewTable but panics on error. Use it for static tables.
func MustTable[H any](routes ...Route[H]) *Table[H] {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns the compiled routes in resolution order.
func (t *Table[H]) Routes() []*Route[H] {
	out := make([]*Route[H], len(t.routes))
	copy(out, t.routes)
	return out
}

// Resolve returns the first route whose pattern matches the whole path.
// A leading slash on path is ignored.
func (t *Table[H]) Resolve(path string) (Match[H], bool) {
	path = strings.TrimPrefix(path, "/")
	for _, r := range t.routes {
		m := r.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := Params{}
		for i, name := range r.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			params[name] = m[i]
		}
		return Match[H]{Route: r, Params: params}, true
	}
	return Match[H]{}, false
}

// Reverse builds the path of the named route from params. The returned path
// has no leading slash, like the patterns themselves.
func (t *Table[H]) Reverse(name string, params Params) (string, error) {
	r, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown route %q", ErrNoReverseMatch, name)
	}

	var b strings.Builder
	for _, s := range r.segments {
		if s.capture == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := params[s.capture]
		if !ok {
			return "", fmt.Errorf("%w: route %q needs %q", ErrNoReverseMatch, name, s.capture)
		}
		v, err := s.converter.toPath(v)
		if err != nil || !s.converter.full.MatchString(v) {
			return "", fmt.Errorf("%w: %q is not a valid %s for %q", ErrNoReverseMatch, params[s.capture], s.converter.name, s.capture)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

var captureToken = regexp.MustCompile(`<(?:([a-z]+):)?([A-Za-z_][A-Za-z0-9_]*)>`)

func (r *Route[H]) compile() error {
	pattern := strings.TrimPrefix(r.Pattern, "/")
	var expr strings.Builder
	expr.WriteString("^")

	seen := map[string]struct{}{}
	last := 0
	for _, loc := range captureToken.FindAllStringSubmatchIndex(pattern, -1) {
		if lit := pattern[last:loc[0]]; lit != "" {
			if strings.ContainsAny(lit, "<>") {
				return fmt.Errorf("route %q: malformed capture in %q", r.Pattern, lit)
			}
			expr.WriteString(regexp.QuoteMeta(lit))
			r.segments = append(r.segments, segment{literal: lit})
		}

		convName := "str"
		if loc[2] >= 0 {
			convName = pattern[loc[2]:loc[3]]
		}
		conv, ok := converters[convName]
		if !ok {
			return fmt.Errorf("route %q: unknown converter %q", r.Pattern, convName)
		}
		capture := pattern[loc[4]:loc[5]]
		if _, dup := seen[capture]; dup {
			return fmt.Errorf("route %q: capture %q is used twice", r.Pattern, capture)
		}
		seen[capture] = struct{}{}

		fmt.Fprintf(&expr, "(?P<%s>%s)", capture, conv.expr)
		r.segments = append(r.segments, segment{capture: capture, converter: conv})
		last = loc[1]
	}
	if lit := pattern[last:]; lit != "" {
		if strings.ContainsAny(lit, "<>") {
			return fmt.Errorf("route %q: malformed capture in %q", r.Pattern, lit)
		}
		expr.WriteString(regexp.QuoteMeta(lit))
		r.segments = append(r.segments, segment{literal: lit})
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return fmt.Errorf("route %q: %w", r.Pattern, err)
	}
	r.Pattern = pattern
	r.re = re
	return nil
}
