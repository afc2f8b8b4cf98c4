package http

import (
	"strings"
	"sync"
	"time"
)

// ParsedRequest holds one fully parsed HTTP request. Instances are pooled;
// callers must not retain a request past ReleaseRequest.
type ParsedRequest struct {
	Method      string
	Path        string
	QueryString string
	Proto       string

	// Headers is case-insensitive; names are lowercased on insert.
	Headers *Headers

	// QueryParams keeps repeated keys in arrival order.
	QueryParams map[string][]string

	// Cookies holds URL-decoded cookie values.
	Cookies map[string]string

	Body          []byte
	ContentType   string
	ContentLength int

	// FormData is populated only for application/x-www-form-urlencoded
	// bodies; duplicate keys collapse, last wins.
	FormData map[string]string

	// PathParams and RouteID are filled by the route matcher before the
	// request reaches the application handler.
	PathParams map[string]string
	RouteID    string

	// IsValidJSON is a cheap structural heuristic, not a full validation.
	IsValidJSON bool

	// ParseDuration is the wall-clock time spent parsing this request.
	ParseDuration time.Duration
}

var requestPool = sync.Pool{
	New: func() any {
		return &ParsedRequest{
			Headers:     NewHeaders(),
			QueryParams: make(map[string][]string, 8),
			Cookies:     make(map[string]string, 4),
			FormData:    make(map[string]string, 4),
			PathParams:  make(map[string]string, 4),
			Body:        make([]byte, 0, 1024),
		}
	},
}

// AcquireRequest returns a reset request from the pool.
func AcquireRequest() *ParsedRequest {
	return requestPool.Get().(*ParsedRequest)
}

// ReleaseRequest resets req and returns it to the pool.
func ReleaseRequest(req *ParsedRequest) {
	req.Reset()
	requestPool.Put(req)
}

// Reset clears the request for reuse without freeing map or slice memory.
func (r *ParsedRequest) Reset() {
	r.Method = ""
	r.Path = ""
	r.QueryString = ""
	r.Proto = ""
	r.Headers.Reset()
	clear(r.QueryParams)
	clear(r.Cookies)
	clear(r.FormData)
	clear(r.PathParams)
	r.Body = r.Body[:0]
	r.ContentType = ""
	r.ContentLength = 0
	r.RouteID = ""
	r.IsValidJSON = false
	r.ParseDuration = 0
}

// Header returns a request header under any ASCII casing.
func (r *ParsedRequest) Header(name string) string {
	return r.Headers.Get(name)
}

// Query returns the first value for a query parameter.
func (r *ParsedRequest) Query(name string) string {
	if vs := r.QueryParams[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Cookie returns the decoded value of a cookie.
func (r *ParsedRequest) Cookie(name string) string {
	return r.Cookies[name]
}

// Param returns a path parameter extracted by the route matcher.
func (r *ParsedRequest) Param(name string) string {
	return r.PathParams[name]
}

// KeepAlive reports whether the connection may be reused after this request.
// HTTP/1.1 defaults to keep-alive unless the client sent Connection: close.
func (r *ParsedRequest) KeepAlive() bool {
	conn := r.Headers.Get("connection")
	if r.Proto == "HTTP/1.0" {
		return strings.EqualFold(conn, "keep-alive")
	}
	return !strings.EqualFold(conn, "close")
}
