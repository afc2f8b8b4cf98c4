// Package router matches request paths against an ordered table of segment
// patterns. Patterns are literal path segments interleaved with {name}
// placeholders; a placeholder matches any run of non-'/' characters. The
// first registered matching route wins.
package router

import "strings"

// Route is one compiled table entry.
type Route struct {
	Pattern    string
	HandlerID  string
	ParamNames []string

	segments []segment
}

type segment struct {
	literal string
	param   string // non-empty for {name} segments
}

// Match is a successful lookup result.
type Match struct {
	HandlerID string
	Params    map[string]string
}

// Table is an ordered route table. Registration happens before the server
// starts; lookups after that need no locking.
type Table struct {
	routes []Route
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{}
}

// Add compiles pattern and appends it to the table. Pattern must begin
// with '/'.
func (t *Table) Add(pattern, handlerID string) {
	if pattern == "" || pattern[0] != '/' {
		panic("router: pattern must begin with '/'")
	}

	r := Route{Pattern: pattern, HandlerID: handlerID}
	for _, part := range splitPath(pattern) {
		if len(part) >= 2 && part[0] == '{' && part[len(part)-1] == '}' {
			name := part[1 : len(part)-1]
			r.segments = append(r.segments, segment{param: name})
			r.ParamNames = append(r.ParamNames, name)
		} else {
			r.segments = append(r.segments, segment{literal: part})
		}
	}
	t.routes = append(t.routes, r)
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Find matches path against the table in registration order. The returned
// params map is nil when the matching route has no placeholders.
func (t *Table) Find(path string) (Match, bool) {
	parts := splitPath(path)
	for i := range t.routes {
		r := &t.routes[i]
		if params, ok := r.match(parts); ok {
			return Match{HandlerID: r.HandlerID, Params: params}, true
		}
	}
	return Match{}, false
}

func (r *Route) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(r.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range r.segments {
		if seg.param != "" {
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, len(r.ParamNames))
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// splitPath breaks "/a/b" into ["a","b"]; "/" yields an empty slice. A
// trailing slash produces a trailing empty segment, which only an explicit
// trailing-slash pattern matches.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
