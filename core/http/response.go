package http

import (
	"strconv"
	"strings"
)

// ServerToken is emitted on every response.
const ServerToken = "PySpeed/1.0"

// HeaderPair preserves the caller's name casing and insertion order.
type HeaderPair struct {
	Name  string
	Value string
}

// ResponseData is the structured form of an HTTP response, produced by the
// application handler or the static path and serialized by Build.
type ResponseData struct {
	StatusCode    int
	StatusMessage string
	Headers       []HeaderPair
	Cookies       []string // full Set-Cookie values, insertion order
	Body          []byte

	EnableCompression bool
	EnableCache       bool
	CacheMaxAge       int // seconds

	// KeepAlive advises the session; a false value forces Connection: close.
	KeepAlive bool
}

// NewResponse creates a 200 response with keep-alive enabled.
func NewResponse() *ResponseData {
	return &ResponseData{StatusCode: 200, KeepAlive: true}
}

// SetHeader appends or replaces a header, preserving the given casing.
func (r *ResponseData) SetHeader(name, value string) *ResponseData {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value
			return r
		}
	}
	r.Headers = append(r.Headers, HeaderPair{name, value})
	return r
}

// AddCookie appends a raw Set-Cookie value.
func (r *ResponseData) AddCookie(cookie string) *ResponseData {
	r.Cookies = append(r.Cookies, cookie)
	return r
}

// JSONResponse builds an application/json response.
func JSONResponse(code int, body []byte) *ResponseData {
	r := NewResponse()
	r.StatusCode = code
	r.Body = body
	r.SetHeader("Content-Type", "application/json")
	return r
}

// HTMLResponse builds a text/html response.
func HTMLResponse(code int, body string) *ResponseData {
	r := NewResponse()
	r.StatusCode = code
	r.Body = []byte(body)
	r.SetHeader("Content-Type", "text/html; charset=utf-8")
	return r
}

// ErrorResponse builds a minimal HTML error page.
func ErrorResponse(code int, message string) *ResponseData {
	body := "<html><head><title>" + strconv.Itoa(code) + " " + message +
		"</title></head><body><h1>" + strconv.Itoa(code) + " " + message +
		"</h1></body></html>"
	r := HTMLResponse(code, body)
	r.StatusMessage = message
	return r
}

// RedirectResponse builds a redirect with a minimal HTML body.
func RedirectResponse(location string, code int) *ResponseData {
	if code == 0 {
		code = 302
	}
	r := HTMLResponse(code, "<html><body><a href=\""+location+"\">Moved</a></body></html>")
	r.SetHeader("Location", location)
	return r
}

// Build serializes the response into wire bytes, appending to dst.
// Server and Content-Length are always set here; a caller-provided
// Content-Length is discarded.
func (r *ResponseData) Build(dst []byte) []byte {
	msg := r.StatusMessage
	if msg == "" {
		msg = StatusText(r.StatusCode)
	}

	dst = append(dst, "HTTP/1.1 "...)
	dst = appendInt(dst, r.StatusCode)
	dst = append(dst, ' ')
	dst = append(dst, msg...)
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Server: "...)
	dst = append(dst, ServerToken...)
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Content-Length: "...)
	dst = appendInt(dst, len(r.Body))
	dst = append(dst, "\r\n"...)

	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		dst = append(dst, h.Name...)
		dst = append(dst, ": "...)
		dst = append(dst, h.Value...)
		dst = append(dst, "\r\n"...)
	}

	if r.EnableCache && r.CacheMaxAge > 0 {
		dst = append(dst, "Cache-Control: max-age="...)
		dst = appendInt(dst, r.CacheMaxAge)
		dst = append(dst, "\r\n"...)
	}

	if !r.KeepAlive {
		dst = append(dst, "Connection: close\r\n"...)
	}

	for _, c := range r.Cookies {
		dst = append(dst, "Set-Cookie: "...)
		dst = append(dst, c...)
		dst = append(dst, "\r\n"...)
	}

	dst = append(dst, "\r\n"...)
	dst = append(dst, r.Body...)
	return dst
}

// statusPhrases is the built-in code to reason-phrase table.
var statusPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	416: "Range Not Satisfiable",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for a status code, "Unknown" when the
// code is not in the table.
func StatusText(code int) string {
	if msg, ok := statusPhrases[code]; ok {
		return msg
	}
	return "Unknown"
}

// appendInt appends the decimal form of i without allocating.
func appendInt(b []byte, i int) []byte {
	return strconv.AppendInt(b, int64(i), 10)
}
