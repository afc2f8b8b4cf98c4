package static

import (
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	chttp "github.com/pyspeedhq/pyspeed/core/http"
)

// Config controls the static file handler.
type Config struct {
	RootDirectory        string
	MaxCacheSizeMB       int64
	MaxFileSizeMB        int64
	CacheTTL             time.Duration
	EnableCompression    bool
	EnableRangeRequests  bool
	EnableETags          bool
	CompressionThreshold int64
	CompressionTypes     []string
	ForbiddenExtensions  []string
	HiddenPrefixes       []string
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		RootDirectory:        "./static",
		MaxCacheSizeMB:       512,
		MaxFileSizeMB:        100,
		CacheTTL:             60 * time.Minute,
		EnableCompression:    true,
		EnableRangeRequests:  true,
		EnableETags:          true,
		CompressionThreshold: 1024,
		CompressionTypes: []string{
			"text/html", "text/css", "text/javascript",
			"application/javascript", "application/json", "text/xml",
		},
		ForbiddenExtensions: []string{".tmp", ".bak", ".log"},
		HiddenPrefixes:      []string{".", "_"},
	}
}

// Status classifies a serve outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusForbidden
	StatusNotModified
	StatusRangeNotSatisfiable
	StatusInternalError
)

// ServeResult is the outcome of one Serve call. Successful results hold a
// reference that keeps the underlying mapping alive; callers must Release
// once the bytes have been written out.
type ServeResult struct {
	Status       Status
	ContentType  string
	ETag         string
	LastModified time.Time

	// Data is the response body: a window into the mapping, the gzip
	// variant, or a request-scoped mapping for oversized files.
	Data          []byte
	ContentLength int64
	Compressed    bool

	IsPartialContent bool
	RangeStart       int64
	RangeEnd         int64
	TotalSize        int64

	entry *CacheEntry // refcounted while the result is live
	owned []byte      // request-scoped mapping for oversized files
}

// Release drops the result's hold on the cached mapping (or unmaps a
// request-scoped one). Safe to call on failure results.
func (r *ServeResult) Release() {
	if r.entry != nil {
		r.entry.release()
		r.entry = nil
	}
	if r.owned != nil {
		unmapFile(r.owned)
		r.owned = nil
	}
	r.Data = nil
}

type route struct {
	prefix string
	root   string
}

// Handler is the shared static-file cache: an RWMutex-guarded index of
// mmap-backed entries with LRU eviction.
type Handler struct {
	cfg Config

	mu          sync.RWMutex
	routes      []route
	cache       map[string]*CacheEntry
	currentSize int64

	stats Stats
}

// NewHandler creates a handler; the index starts empty.
func NewHandler(cfg Config) *Handler {
	if cfg.RootDirectory == "" {
		cfg.RootDirectory = "./static"
	}
	return &Handler{
		cfg:   cfg,
		cache: make(map[string]*CacheEntry),
	}
}

// Stats exposes the serve counters.
func (h *Handler) Stats() *Stats {
	return &h.stats
}

// CurrentCacheSize returns the summed size of cached entries.
func (h *Handler) CurrentCacheSize() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentSize
}

// AddRoute maps a URL prefix to a local directory root. Returns false for an
// invalid prefix.
func (h *Handler) AddRoute(urlPrefix, localRoot string) bool {
	if urlPrefix == "" || urlPrefix[0] != '/' || localRoot == "" {
		return false
	}
	urlPrefix = strings.TrimSuffix(urlPrefix, "/")
	if urlPrefix == "" {
		urlPrefix = "/"
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.routes {
		if h.routes[i].prefix == urlPrefix {
			h.routes[i].root = localRoot
			return true
		}
	}
	h.routes = append(h.routes, route{prefix: urlPrefix, root: localRoot})
	return true
}

// RemoveRoute unregisters a URL prefix.
func (h *Handler) RemoveRoute(urlPrefix string) {
	urlPrefix = strings.TrimSuffix(urlPrefix, "/")
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.routes {
		if h.routes[i].prefix == urlPrefix {
			h.routes = append(h.routes[:i], h.routes[i+1:]...)
			return
		}
	}
}

// Routes lists the registered URL prefixes.
func (h *Handler) Routes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.routes))
	for i, r := range h.routes {
		out[i] = r.prefix
	}
	return out
}

// Matches reports whether a request path falls under a registered static
// route. The engine uses this to classify static vs. application requests.
func (h *Handler) Matches(requestPath string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.routes {
		if matchesPrefix(requestPath, r.prefix) {
			return true
		}
	}
	return false
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Serve resolves, revalidates and serves a file. The request headers drive
// conditional and range behavior.
func (h *Handler) Serve(requestPath string, headers *chttp.Headers) *ServeResult {
	start := time.Now()
	res := h.serve(requestPath, headers)
	h.stats.TotalServeTimeUs.Add(uint64(time.Since(start).Microseconds()))
	if res.Status == StatusSuccess {
		h.stats.FilesServed.Add(1)
		h.stats.BytesServed.Add(uint64(res.ContentLength))
	}
	return res
}

func (h *Handler) serve(requestPath string, headers *chttp.Headers) *ServeResult {
	filePath, status := h.resolvePath(requestPath)
	if status != StatusSuccess {
		return &ServeResult{Status: status}
	}
	if h.isForbidden(filePath) {
		return &ServeResult{Status: StatusForbidden}
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return &ServeResult{Status: StatusNotFound}
	}
	mtime := info.ModTime()
	size := info.Size()

	etag := ""
	if h.cfg.EnableETags {
		etag = generateETag(filePath, mtime)
	}

	// Revalidation happens before the cache body is touched.
	if headers != nil {
		if etag != "" && headers.Get("if-none-match") == etag {
			return h.notModified(filePath, etag, mtime)
		}
		if ims := headers.Get("if-modified-since"); ims != "" {
			if t, ok := chttp.ParseHTTPDate(ims); ok && !t.Before(mtime.Truncate(time.Second)) {
				return h.notModified(filePath, etag, mtime)
			}
		}
	}

	entry, hit := h.lookup(filePath, mtime, size)
	if hit {
		h.stats.CacheHits.Add(1)
	} else {
		h.stats.CacheMisses.Add(1)
	}

	if entry == nil {
		// Oversized files bypass the cache: a request-scoped mapping is
		// created and released with the result. A file larger than the
		// whole cache bound can never be admitted either.
		if size > h.cfg.MaxFileSizeMB*1024*1024 || size > h.cfg.MaxCacheSizeMB*1024*1024 {
			return h.serveOversized(filePath, etag, mtime, size, headers)
		}

		data, err := mapFile(filePath, size)
		if err != nil {
			return &ServeResult{Status: StatusInternalError}
		}
		entry = &CacheEntry{
			path:         filePath,
			contentType:  MimeType(filePath),
			etag:         etag,
			lastModified: mtime,
			size:         size,
			data:         data,
			insertedAt:   time.Now(),
		}
		entry.refs.Store(1) // the index's reference
		entry.touch()
		entry.retain() // this request's reference
		h.insert(entry)
	}

	return h.buildResult(entry, headers)
}

// notModified also counts a cache hit when a fresh entry is present, and
// touches it so revalidation traffic keeps the entry warm.
func (h *Handler) notModified(filePath string, etag string, mtime time.Time) *ServeResult {
	h.stats.NotModifiedResponses.Add(1)
	h.mu.RLock()
	entry, ok := h.cache[filePath]
	if ok && entry.lastModified.Equal(mtime) {
		entry.touch()
		h.stats.CacheHits.Add(1)
	}
	h.mu.RUnlock()
	return &ServeResult{
		Status:       StatusNotModified,
		ETag:         etag,
		LastModified: mtime,
		ContentType:  MimeType(filePath),
	}
}

// lookup returns a retained fresh entry, or nil on miss. Stale entries
// (mtime drift, size change, TTL expiry) are removed from the index.
func (h *Handler) lookup(filePath string, mtime time.Time, size int64) (*CacheEntry, bool) {
	h.mu.RLock()
	entry, ok := h.cache[filePath]
	if ok && entry.lastModified.Equal(mtime) && entry.size == size &&
		(h.cfg.CacheTTL <= 0 || time.Since(entry.insertedAt) <= h.cfg.CacheTTL) {
		entry.touch()
		entry.retain()
		h.mu.RUnlock()
		return entry, true
	}
	h.mu.RUnlock()

	if ok {
		// Stale: demote to a miss and drop the index's reference.
		h.mu.Lock()
		if cur, still := h.cache[filePath]; still && cur == entry {
			delete(h.cache, filePath)
			h.currentSize -= entry.size
			entry.release()
		}
		h.mu.Unlock()
	}
	return nil, false
}

// insert commits a new entry, evicting LRU entries first when the incoming
// size would push the index past its bound.
func (h *Handler) insert(entry *CacheEntry) {
	maxBytes := h.cfg.MaxCacheSizeMB * 1024 * 1024

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.cache[entry.path]; ok {
		h.currentSize -= old.size
		old.release()
	}

	if h.currentSize+entry.size > maxBytes {
		h.evictLocked(entry.size, maxBytes)
	}

	h.cache[entry.path] = entry
	h.currentSize += entry.size
}

// evictLocked removes entries in ascending last-access order until the
// incoming size fits. Mappings still referenced by in-flight sessions stay
// alive until those references release.
func (h *Handler) evictLocked(incoming, maxBytes int64) {
	entries := make([]*CacheEntry, 0, len(h.cache))
	for _, e := range h.cache {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastAccessed.Load() < entries[j].lastAccessed.Load()
	})

	for _, e := range entries {
		if h.currentSize+incoming <= maxBytes {
			break
		}
		delete(h.cache, e.path)
		h.currentSize -= e.size
		e.release()
	}
}

// buildResult assembles the success response from a retained entry: range
// window, gzip variant, or the plain mapping.
func (h *Handler) buildResult(entry *CacheEntry, headers *chttp.Headers) *ServeResult {
	res := &ServeResult{
		Status:       StatusSuccess,
		ContentType:  entry.contentType,
		ETag:         entry.etag,
		LastModified: entry.lastModified,
		TotalSize:    entry.size,
		entry:        entry,
	}

	if h.cfg.EnableRangeRequests && headers != nil {
		if rangeHeader := headers.Get("range"); rangeHeader != "" {
			h.stats.RangeRequests.Add(1)
			br, ok := parseRangeHeader(rangeHeader, entry.size)
			if !ok {
				res.Status = StatusRangeNotSatisfiable
				res.Release()
				res.TotalSize = entry.size
				return res
			}
			res.IsPartialContent = true
			res.RangeStart = br.Start
			res.RangeEnd = br.End
			res.ContentLength = br.End - br.Start + 1
			res.Data = entry.data[br.Start : br.End+1]
			return res
		}
	}

	if h.shouldCompress(entry, headers) {
		if compressed := entry.compress(func() { h.stats.FilesCompressed.Add(1) }); compressed != nil {
			res.Data = compressed
			res.ContentLength = int64(len(compressed))
			res.Compressed = true
			return res
		}
	}

	res.Data = entry.data
	res.ContentLength = entry.size
	return res
}

// serveOversized maps the file for this request only; the mapping is
// released with the result. Range requests still apply.
func (h *Handler) serveOversized(filePath, etag string, mtime time.Time, size int64, headers *chttp.Headers) *ServeResult {
	data, err := mapFile(filePath, size)
	if err != nil {
		return &ServeResult{Status: StatusInternalError}
	}

	res := &ServeResult{
		Status:       StatusSuccess,
		ContentType:  MimeType(filePath),
		ETag:         etag,
		LastModified: mtime,
		TotalSize:    size,
		owned:        data,
	}

	if h.cfg.EnableRangeRequests && headers != nil {
		if rangeHeader := headers.Get("range"); rangeHeader != "" {
			h.stats.RangeRequests.Add(1)
			br, ok := parseRangeHeader(rangeHeader, size)
			if !ok {
				res.Status = StatusRangeNotSatisfiable
				res.Release()
				res.TotalSize = size
				return res
			}
			res.IsPartialContent = true
			res.RangeStart = br.Start
			res.RangeEnd = br.End
			res.ContentLength = br.End - br.Start + 1
			res.Data = data[br.Start : br.End+1]
			return res
		}
	}

	res.Data = data
	res.ContentLength = size
	return res
}

// shouldCompress applies the eligibility rules: config switch, size
// threshold, content-type prefix list, and client Accept-Encoding.
func (h *Handler) shouldCompress(entry *CacheEntry, headers *chttp.Headers) bool {
	if !h.cfg.EnableCompression || entry.size < h.cfg.CompressionThreshold {
		return false
	}
	eligible := false
	for _, t := range h.cfg.CompressionTypes {
		if strings.HasPrefix(entry.contentType, t) {
			eligible = true
			break
		}
	}
	if !eligible || headers == nil {
		return false
	}
	return strings.Contains(headers.Get("accept-encoding"), "gzip")
}

// resolvePath maps a request path to a local file path via the
// longest-prefix route, falling back to the configured root directory.
func (h *Handler) resolvePath(requestPath string) (string, Status) {
	h.mu.RLock()
	longest := ""
	localRoot := ""
	for _, r := range h.routes {
		if matchesPrefix(requestPath, r.prefix) && len(r.prefix) > len(longest) {
			longest = r.prefix
			localRoot = r.root
		}
	}
	h.mu.RUnlock()

	if longest == "" {
		longest = "/"
		localRoot = h.cfg.RootDirectory
	}

	relative := strings.TrimPrefix(requestPath, strings.TrimSuffix(longest, "/"))
	if relative == "" || relative == "/" {
		relative = "/index.html"
	}
	if relative[0] != '/' {
		relative = "/" + relative
	}

	// The traversal guard runs on the request-relative part before the
	// local root is joined: a ".." that would climb out of the route root
	// survives normalization and is rejected here.
	relative = NormalizePath(relative)
	if !IsSafePath(relative) {
		return "", StatusForbidden
	}
	return strings.TrimSuffix(localRoot, "/") + relative, StatusSuccess
}

// isForbidden checks the filename against hidden prefixes and forbidden
// extensions.
func (h *Handler) isForbidden(filePath string) bool {
	name := baseName(filePath)
	for _, p := range h.cfg.HiddenPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	ext := strings.ToLower(FileExtension(name))
	for _, f := range h.cfg.ForbiddenExtensions {
		if ext == f {
			return true
		}
	}
	return false
}

// ClearCache drops every entry. Mappings referenced by in-flight sessions
// survive until released.
func (h *Handler) ClearCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for path, e := range h.cache {
		delete(h.cache, path)
		e.release()
	}
	h.currentSize = 0
}

// InvalidateFile removes a single entry if present.
func (h *Handler) InvalidateFile(filePath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.cache[filePath]; ok {
		delete(h.cache, filePath)
		h.currentSize -= e.size
		e.release()
	}
}

// generateETag builds the quoted `"<hex-hash(path)>-<mtime-seconds>"` form.
func generateETag(filePath string, mtime time.Time) string {
	hash := fnv.New64a()
	hash.Write([]byte(filePath))
	return fmt.Sprintf("\"%x-%d\"", hash.Sum64(), mtime.Unix())
}
