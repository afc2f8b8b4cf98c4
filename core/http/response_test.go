package http

import (
	"strings"
	"testing"
)

func TestBuildBasicResponse(t *testing.T) {
	resp := NewResponse()
	resp.Body = []byte("hello")
	resp.SetHeader("X-Custom", "1")

	out := string(resp.Build(nil))

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Unexpected status line: %q", out)
	}
	if !strings.Contains(out, "Server: PySpeed/1.0\r\n") {
		t.Error("Server header missing")
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Error("Content-Length missing or wrong")
	}
	if !strings.Contains(out, "X-Custom: 1\r\n") {
		t.Error("Custom header missing")
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Errorf("Body not terminated correctly: %q", out)
	}
}

func TestCallerContentLengthOverridden(t *testing.T) {
	resp := NewResponse()
	resp.Body = []byte("abc")
	resp.SetHeader("Content-Length", "999")

	out := string(resp.Build(nil))
	if strings.Contains(out, "Content-Length: 999") {
		t.Error("Caller Content-Length should be discarded")
	}
	if !strings.Contains(out, "Content-Length: 3\r\n") {
		t.Error("Recomputed Content-Length missing")
	}
}

func TestCookiesEmittedInOrder(t *testing.T) {
	resp := NewResponse()
	resp.AddCookie("a=1; Path=/")
	resp.AddCookie("b=2; HttpOnly")

	out := string(resp.Build(nil))
	first := strings.Index(out, "Set-Cookie: a=1; Path=/\r\n")
	second := strings.Index(out, "Set-Cookie: b=2; HttpOnly\r\n")
	if first == -1 || second == -1 {
		t.Fatalf("Cookies missing from output: %q", out)
	}
	if first > second {
		t.Error("Cookies emitted out of insertion order")
	}
}

func TestUnknownStatusCode(t *testing.T) {
	resp := NewResponse()
	resp.StatusCode = 799

	out := string(resp.Build(nil))
	if !strings.HasPrefix(out, "HTTP/1.1 799 Unknown\r\n") {
		t.Errorf("Unexpected status line: %q", out)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	j := JSONResponse(201, []byte(`{"ok":true}`))
	out := string(j.Build(nil))
	if !strings.Contains(out, "Content-Type: application/json\r\n") {
		t.Error("JSON content type missing")
	}
	if !strings.HasPrefix(out, "HTTP/1.1 201 Created\r\n") {
		t.Errorf("Unexpected status line: %q", out)
	}

	h := HTMLResponse(200, "<p>hi</p>")
	if !strings.Contains(string(h.Build(nil)), "Content-Type: text/html; charset=utf-8\r\n") {
		t.Error("HTML content type missing")
	}

	e := ErrorResponse(404, "Not Found")
	eOut := string(e.Build(nil))
	if !strings.HasPrefix(eOut, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("Unexpected status line: %q", eOut)
	}
	if !strings.Contains(eOut, "<h1>404 Not Found</h1>") {
		t.Error("Minimal HTML body missing")
	}

	r := RedirectResponse("/login", 0)
	rOut := string(r.Build(nil))
	if !strings.HasPrefix(rOut, "HTTP/1.1 302 Found\r\n") {
		t.Errorf("Unexpected status line: %q", rOut)
	}
	if !strings.Contains(rOut, "Location: /login\r\n") {
		t.Error("Location header missing")
	}
}

func TestConnectionCloseEmitted(t *testing.T) {
	resp := NewResponse()
	resp.KeepAlive = false

	out := string(resp.Build(nil))
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Error("Connection: close missing")
	}
}

func TestCacheControlEmitted(t *testing.T) {
	resp := NewResponse()
	resp.EnableCache = true
	resp.CacheMaxAge = 60

	out := string(resp.Build(nil))
	if !strings.Contains(out, "Cache-Control: max-age=60\r\n") {
		t.Error("Cache-Control missing")
	}
}

func BenchmarkBuildResponse(b *testing.B) {
	resp := JSONResponse(200, []byte(`{"status":"ok","message":"hello world"}`))
	dst := make([]byte, 0, 1024)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dst = resp.Build(dst[:0])
	}
}
