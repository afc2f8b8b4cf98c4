package static

import (
	"bytes"
	"compress/gzip"
	"sync"
	"sync/atomic"
	"time"
)

// CacheEntry is one cached file: a read-only mapping plus its revalidation
// metadata. Entries are shared between the index and in-flight sessions via
// refcounts; the mapping is released when the last holder lets go.
type CacheEntry struct {
	path         string
	contentType  string
	etag         string
	lastModified time.Time
	size         int64

	data []byte // read-only mapping; len(data) == size

	insertedAt   time.Time
	lastAccessed atomic.Int64 // monotonic nanoseconds
	accessCount  atomic.Uint64

	refs atomic.Int32

	compressOnce sync.Once
	compressed   []byte
}

// Path returns the resolved file path: the route's local root joined with the
// normalized request-relative path. It is relative when the root is.
func (e *CacheEntry) Path() string { return e.path }

// Size returns the mapped file size.
func (e *CacheEntry) Size() int64 { return e.size }

// AccessCount returns the number of serves from this entry.
func (e *CacheEntry) AccessCount() uint64 { return e.accessCount.Load() }

func (e *CacheEntry) touch() {
	e.lastAccessed.Store(nanotime())
	e.accessCount.Add(1)
}

func (e *CacheEntry) retain() {
	e.refs.Add(1)
}

// release drops one reference; the mapping is unmapped when the count hits
// zero, which can only happen after the index itself has dropped its
// reference.
func (e *CacheEntry) release() {
	if e.refs.Add(-1) == 0 {
		unmapFile(e.data)
		e.data = nil
	}
}

// compress builds the gzip variant exactly once. onFirst runs only on the
// build that actually happened.
func (e *CacheEntry) compress(onFirst func()) []byte {
	e.compressOnce.Do(func() {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(e.data); err != nil {
			zw.Close()
			return
		}
		if err := zw.Close(); err != nil {
			return
		}
		e.compressed = buf.Bytes()
		onFirst()
	})
	return e.compressed
}

var monotonicBase = time.Now()

// nanotime returns monotonic nanoseconds since process start.
func nanotime() int64 {
	return int64(time.Since(monotonicBase))
}
