package core

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	chttp "github.com/pyspeedhq/pyspeed/core/http"
	"github.com/pyspeedhq/pyspeed/core/poller"
	"github.com/pyspeedhq/pyspeed/core/pools"
	"github.com/pyspeedhq/pyspeed/core/router"
	"github.com/pyspeedhq/pyspeed/core/static"
)

// Config holds the engine's runtime parameters.
type Config struct {
	Address          string
	Port             int
	Threads          int
	MaxRequestSize   int
	KeepAliveTimeout time.Duration
	IOBufferSize     int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Address:          "0.0.0.0",
		Port:             8000,
		Threads:          runtime.NumCPU(),
		MaxRequestSize:   10 * 1024 * 1024,
		KeepAliveTimeout: 30 * time.Second,
		IOBufferSize:     16 * 1024,
	}
}

// allowedMethods is the validation-gate method set.
var allowedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true,
	"PUT": true, "DELETE": true, "OPTIONS": true,
}

// Engine accepts connections, drives session state machines across a fixed
// worker pool, and dispatches requests to the static path or the
// application bridge.
type Engine struct {
	cfg Config

	routes  *router.Table
	static  *static.Handler
	parser  *chttp.Parser
	handler Handler

	poller   poller.Poller
	sessions map[int]*Session
	sessMu   sync.RWMutex

	bytePool *pools.BytePool
	workers  *pools.WorkerPool
	stats    *EngineStats

	ln     *net.TCPListener
	lnFile *os.File
	lfd    int

	running  atomic.Bool
	shutdown atomic.Bool
}

// NewEngine creates an engine. Static routes and the bridge handler are
// registered before Run; the tables are immutable once serving starts.
func NewEngine(cfg Config, staticHandler *static.Handler) *Engine {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	if cfg.IOBufferSize <= 0 {
		cfg.IOBufferSize = 16 * 1024
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = 10 * 1024 * 1024
	}
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		routes:   router.NewTable(),
		static:   staticHandler,
		parser:   chttp.NewParser(),
		sessions: make(map[int]*Session, 1024),
		bytePool: pools.NewBytePool(),
		workers:  pools.NewWorkerPool(cfg.Threads),
		stats:    NewEngineStats(),
	}
}

// SetHandler registers the application bridge callback.
func (e *Engine) SetHandler(h Handler) {
	e.handler = h
}

// Route registers an application route pattern mapped to a handler id.
func (e *Engine) Route(pattern, handlerID string) {
	e.routes.Add(pattern, handlerID)
}

// Static returns the static file handler, nil when none is attached.
func (e *Engine) Static() *static.Handler {
	return e.static
}

// Stats exposes the engine counters.
func (e *Engine) Stats() *EngineStats {
	return e.stats
}

// Parser exposes the request parser (for its stats).
func (e *Engine) Parser() *chttp.Parser {
	return e.parser
}

// Listen binds the listening socket and prepares the poller. Split from
// Serve so callers can learn the bound address (port 0 picks a free one).
func (e *Engine) Listen() error {
	addr := net.JoinHostPort(e.cfg.Address, strconv.Itoa(e.cfg.Port))
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}

	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	e.ln = ln

	f, err := ln.File()
	if err != nil {
		ln.Close()
		return err
	}
	e.lnFile = f
	e.lfd = int(f.Fd())

	// The dup from File() is blocking; the accept loop needs EAGAIN.
	if err := unix.SetNonblock(e.lfd, true); err != nil {
		e.closeListener()
		return err
	}
	if err := unix.SetsockoptInt(e.lfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		e.closeListener()
		return err
	}

	e.poller, err = poller.NewPoller()
	if err != nil {
		e.closeListener()
		return err
	}
	if err := e.poller.Add(e.lfd); err != nil {
		e.poller.Close()
		e.closeListener()
		return err
	}
	return nil
}

// ListenAddr returns the bound address after Listen.
func (e *Engine) ListenAddr() net.Addr {
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Run binds and serves until Shutdown.
func (e *Engine) Run() error {
	if err := e.Listen(); err != nil {
		return err
	}
	return e.Serve()
}

// Serve drives the poller loop. It returns after Shutdown.
func (e *Engine) Serve() error {
	if e.poller == nil {
		return fmt.Errorf("engine: Serve before Listen")
	}
	e.running.Store(true)

	log.Info().
		Str("addr", e.ListenAddr().String()).
		Int("workers", e.cfg.Threads).
		Msg("engine listening")

	go e.reapIdleSessions()

	for !e.shutdown.Load() {
		events, err := e.poller.Wait(100)
		if err != nil {
			if e.shutdown.Load() {
				break
			}
			log.Error().Err(err).Msg("poller wait failed")
			continue
		}

		for _, ev := range events {
			if ev.FD == e.lfd {
				e.acceptConnections()
				continue
			}
			e.dispatchEvent(ev)
		}
	}

	e.teardown()
	return nil
}

// Shutdown stops the serve loop and releases every session.
func (e *Engine) Shutdown() {
	e.shutdown.Store(true)
}

func (e *Engine) teardown() {
	e.running.Store(false)

	e.sessMu.Lock()
	fds := make([]int, 0, len(e.sessions))
	for fd := range e.sessions {
		fds = append(fds, fd)
	}
	e.sessMu.Unlock()
	for _, fd := range fds {
		e.sessMu.Lock()
		sess := e.sessions[fd]
		delete(e.sessions, fd)
		e.sessMu.Unlock()
		if sess != nil {
			e.poller.Remove(fd)
			unix.Close(fd)
			sess.state = StateClosed
		}
	}

	e.workers.Close()
	if e.poller != nil {
		e.poller.Close()
	}
	e.closeListener()
	log.Info().Msg("engine stopped")
}

func (e *Engine) closeListener() {
	if e.lnFile != nil {
		e.lnFile.Close()
		e.lnFile = nil
	}
	if e.ln != nil {
		e.ln.Close()
		e.ln = nil
	}
}

// acceptConnections drains the accept queue.
func (e *Engine) acceptConnections() {
	for {
		nfd, _, err := unix.Accept(e.lfd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.ECONNABORTED || err == unix.EINTR {
				continue
			}
			log.Error().Err(err).Msg("accept failed")
			return
		}

		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			continue
		}
		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		sess := acquireSession(nfd, e.bytePool.Get(e.cfg.IOBufferSize))

		if err := e.poller.Add(nfd); err != nil {
			e.bytePool.Put(sess.inBuf)
			releaseSession(sess)
			unix.Close(nfd)
			continue
		}

		e.sessMu.Lock()
		e.sessions[nfd] = sess
		e.sessMu.Unlock()

		e.stats.ConnectionsAccepted.Inc()
	}
}

// dispatchEvent hands a readiness event to the session's strand. The
// inflight flag suppresses duplicate level-triggered wakeups while a worker
// is already driving the session; the kernel re-reports on the next wait.
func (e *Engine) dispatchEvent(ev poller.Event) {
	e.sessMu.RLock()
	sess := e.sessions[ev.FD]
	e.sessMu.RUnlock()
	if sess == nil {
		return
	}

	if !sess.inflight.CompareAndSwap(false, true) {
		return
	}
	event := ev
	e.workers.SubmitKeyed(ev.FD, func() {
		e.handleEvent(sess, event)
		sess.inflight.Store(false)
	})
}

// handleEvent runs on the session's strand. A session recycled onto a new
// fd between enqueue and execution is detected by the fd check.
func (e *Engine) handleEvent(sess *Session, ev poller.Event) {
	if sess.state == StateClosed || sess.fd != ev.FD {
		return
	}
	sess.touch()

	if sess.state == StateWriting {
		if ev.Writable {
			e.flushWrite(sess)
			// A pipelined request may already be buffered; the poller
			// will not re-report bytes that were read before the write
			// stalled.
			if sess.state == StateReadingHeaders && sess.inLen > 0 {
				e.advance(sess)
			}
		}
		return
	}
	if ev.Readable {
		e.handleReadable(sess)
	}
}

// handleReadable pulls bytes until EAGAIN, then advances the state machine.
func (e *Engine) handleReadable(sess *Session) {
	for {
		if sess.inLen == len(sess.inBuf) {
			if !e.growReadBuffer(sess) {
				e.respondError(sess, 400, "Bad Request")
				return
			}
		}

		n, err := unix.Read(sess.fd, sess.inBuf[sess.inLen:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			e.stats.Errors.Inc()
			e.closeSession(sess)
			return
		}
		if n == 0 {
			// Peer closed; an abandoned mid-request session is reclaimed
			// without touching its peers.
			e.closeSession(sess)
			return
		}
		sess.inLen += n
	}

	e.advance(sess)
}

// growReadBuffer doubles the buffer up to the header cap plus the body cap.
func (e *Engine) growReadBuffer(sess *Session) bool {
	limit := maxHeaderBytes + e.cfg.MaxRequestSize
	if len(sess.inBuf) >= limit {
		return false
	}
	newSize := len(sess.inBuf) * 2
	if newSize > limit {
		newSize = limit
	}
	grown := make([]byte, newSize)
	copy(grown, sess.inBuf[:sess.inLen])
	e.bytePool.Put(sess.inBuf)
	sess.inBuf = grown
	return true
}

// advance walks the session state machine over the buffered bytes.
func (e *Engine) advance(sess *Session) {
	for {
		if sess.state == StateReadingHeaders {
			end := sess.findHeaderEnd()
			if end == -1 {
				if sess.inLen > maxHeaderBytes {
					e.respondError(sess, 400, "Bad Request")
				}
				return
			}
			sess.headerEnd = end

			cl := scanContentLength(sess.inBuf[:end])
			if cl < 0 || cl > e.cfg.MaxRequestSize {
				e.respondError(sess, 400, "Bad Request")
				return
			}
			sess.contentLength = cl
			sess.state = StateReadingBody
		}

		if sess.state == StateReadingBody {
			total := sess.headerEnd + sess.contentLength
			if sess.inLen < total {
				return
			}
			sess.state = StateDispatching
			e.dispatch(sess, total)
		}

		if sess.state == StateWriting {
			e.flushWrite(sess)
		}

		// flushWrite either drained (back to ReadingHeaders, possibly with
		// pipelined bytes buffered), armed for write readiness, or closed.
		if sess.state != StateReadingHeaders || sess.inLen == 0 {
			return
		}
	}
}

// dispatch parses the buffered message, applies the validation gate, and
// routes to the static path or the application bridge.
func (e *Engine) dispatch(sess *Session, total int) {
	sess.consumed = total
	start := time.Now()

	req, err := e.parser.Parse(sess.inBuf[:total])
	if err != nil {
		e.respondError(sess, 400, "Bad Request")
		return
	}
	defer chttp.ReleaseRequest(req)

	if !allowedMethods[req.Method] || req.Path == "" || req.Path[0] != '/' {
		e.respondError(sess, 400, "Bad Request")
		return
	}

	isStatic := e.static != nil && e.static.Matches(req.Path)

	// Dot-dot targets on the static path fall through to the cache's
	// traversal guard (403); anywhere else they are simply malformed.
	if !isStatic && strings.Contains(req.Path, "..") {
		e.respondError(sess, 400, "Bad Request")
		return
	}

	e.stats.RequestsServed.Inc()

	var resp *chttp.ResponseData
	var staticRes *static.ServeResult
	if isStatic {
		e.stats.StaticRequests.Inc()
		resp, staticRes = e.serveStatic(req)
	} else {
		e.stats.AppRequests.Inc()
		if m, ok := e.routes.Find(req.Path); ok {
			req.RouteID = m.HandlerID
			for k, v := range m.Params {
				req.PathParams[k] = v
			}
		}
		resp = invokeHandler(e.handler, req)
	}

	resp.KeepAlive = resp.KeepAlive && req.KeepAlive()
	sess.keepAlive = resp.KeepAlive
	sess.outBuf = resp.Build(sess.outBuf[:0])
	if req.Method == "HEAD" {
		// Headers only; Content-Length still describes the full body.
		if i := bytes.Index(sess.outBuf, crlfcrlf); i != -1 {
			sess.outBuf = sess.outBuf[:i+len(crlfcrlf)]
		}
	}
	if staticRes != nil {
		// Build copied the mapped bytes into the write buffer; the
		// session's hold on the entry can release now.
		staticRes.Release()
	}
	sess.outOff = 0
	sess.state = StateWriting

	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request")
}

// serveStatic translates a cache ServeResult into a ResponseData. The
// returned result still holds its reference; the caller releases it after
// the body bytes have been copied out.
func (e *Engine) serveStatic(req *chttp.ParsedRequest) (*chttp.ResponseData, *static.ServeResult) {
	res := e.static.Serve(req.Path, req.Headers)

	switch res.Status {
	case static.StatusSuccess:
		resp := chttp.NewResponse()
		resp.SetHeader("Content-Type", res.ContentType)
		if res.ETag != "" {
			resp.SetHeader("ETag", res.ETag)
		}
		resp.SetHeader("Last-Modified", chttp.FormatHTTPDate(res.LastModified))
		if res.IsPartialContent {
			resp.StatusCode = 206
			resp.SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d",
				res.RangeStart, res.RangeEnd, res.TotalSize))
		}
		if res.Compressed {
			resp.SetHeader("Content-Encoding", "gzip")
		}
		resp.Body = res.Data
		return resp, res

	case static.StatusNotModified:
		resp := chttp.NewResponse()
		resp.StatusCode = 304
		if res.ETag != "" {
			resp.SetHeader("ETag", res.ETag)
		}
		resp.SetHeader("Last-Modified", chttp.FormatHTTPDate(res.LastModified))
		return resp, res

	case static.StatusForbidden:
		return chttp.ErrorResponse(403, "Forbidden"), res

	case static.StatusRangeNotSatisfiable:
		resp := chttp.ErrorResponse(416, "Range Not Satisfiable")
		resp.SetHeader("Content-Range", fmt.Sprintf("bytes */%d", res.TotalSize))
		return resp, res

	case static.StatusInternalError:
		e.stats.Errors.Inc()
		return chttp.ErrorResponse(500, "Internal Server Error"), res

	default:
		return chttp.ErrorResponse(404, "Not Found"), res
	}
}

// respondError short-circuits the state machine with an error response and
// forces the connection closed after the write.
func (e *Engine) respondError(sess *Session, code int, message string) {
	e.stats.Errors.Inc()
	resp := chttp.ErrorResponse(code, message)
	resp.KeepAlive = false
	sess.keepAlive = false
	sess.consumed = sess.inLen
	sess.outBuf = resp.Build(sess.outBuf[:0])
	sess.outOff = 0
	sess.state = StateWriting
	e.flushWrite(sess)
}

// flushWrite pushes the response out. On a short write the poller is armed
// for write readiness and the session resumes on the next writable event.
func (e *Engine) flushWrite(sess *Session) {
	for sess.outOff < len(sess.outBuf) {
		n, err := unix.Write(sess.fd, sess.outBuf[sess.outOff:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				sess.writeArmed = true
				e.poller.ModReadWrite(sess.fd)
				return
			}
			if err == unix.EINTR {
				continue
			}
			// Peer reset mid-write: drop silently, count it.
			e.stats.Errors.Inc()
			e.closeSession(sess)
			return
		}
		sess.outOff += n
		e.stats.BytesWritten.Add(int64(n))
	}

	if sess.writeArmed {
		sess.writeArmed = false
		e.poller.ModRead(sess.fd)
	}

	if !sess.keepAlive {
		unix.Shutdown(sess.fd, unix.SHUT_WR)
		e.closeSession(sess)
		return
	}

	sess.resetForNextRequest(sess.consumed)
	sess.consumed = 0
}

// closeSession tears a session down and returns its buffers to the pools.
func (e *Engine) closeSession(sess *Session) {
	if sess.state == StateClosed {
		return
	}
	fd := sess.fd

	e.sessMu.Lock()
	if e.sessions[fd] == sess {
		delete(e.sessions, fd)
	}
	e.sessMu.Unlock()

	e.poller.Remove(fd)
	unix.Close(fd)

	e.bytePool.Put(sess.inBuf)
	sess.inBuf = nil
	releaseSession(sess)
}

// reapIdleSessions closes sessions idle past the keep-alive timeout. The
// close runs on the session's strand so it cannot race the worker.
func (e *Engine) reapIdleSessions() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if e.shutdown.Load() {
			return
		}
		now := time.Now()

		e.sessMu.RLock()
		var stale []*Session
		for _, sess := range e.sessions {
			if sess.state != StateDispatching && sess.idleFor(now) > e.cfg.KeepAliveTimeout {
				stale = append(stale, sess)
			}
		}
		e.sessMu.RUnlock()

		for _, sess := range stale {
			s := sess
			e.workers.SubmitKeyed(s.fd, func() {
				// Re-check on the strand; the session may have turned
				// active or closed since the scan.
				if s.state != StateClosed && s.idleFor(time.Now()) > e.cfg.KeepAliveTimeout {
					e.closeSession(s)
				}
			})
		}
	}
}
