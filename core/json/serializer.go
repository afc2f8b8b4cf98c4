package json

import (
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// SerializerConfig controls output shape.
type SerializerConfig struct {
	PrettyPrint bool
	IndentSize  int
	// SortKeys emits object keys in ascending codepoint order instead of
	// insertion order.
	SortKeys bool
	// EnsureASCII escapes every non-ASCII rune as \uXXXX.
	EnsureASCII bool
	// EscapeUnicode is an alias for EnsureASCII.
	EscapeUnicode bool
}

// DefaultSerializerConfig returns compact output settings.
func DefaultSerializerConfig() SerializerConfig {
	return SerializerConfig{IndentSize: 2}
}

// SerializerStats tracks advisory serializer counters.
type SerializerStats struct {
	DocumentsSerialized  atomic.Uint64
	TotalSerializeTimeNs atomic.Uint64
	BytesSerialized      atomic.Uint64
	SerializeErrors      atomic.Uint64
}

// Serializer renders a value tree to bytes.
type Serializer struct {
	cfg   SerializerConfig
	stats SerializerStats
}

// NewSerializer creates a serializer. Zero IndentSize defaults to 2.
func NewSerializer(cfg SerializerConfig) *Serializer {
	if cfg.IndentSize <= 0 {
		cfg.IndentSize = 2
	}
	return &Serializer{cfg: cfg}
}

// Stats exposes the serializer counters.
func (s *Serializer) Stats() *SerializerStats {
	return &s.stats
}

// Serialize renders v, compact by default or indented under PrettyPrint.
func (s *Serializer) Serialize(v Value) []byte {
	start := time.Now()
	out := s.appendValue(nil, v, 0)
	s.stats.DocumentsSerialized.Add(1)
	s.stats.BytesSerialized.Add(uint64(len(out)))
	s.stats.TotalSerializeTimeNs.Add(uint64(time.Since(start).Nanoseconds()))
	return out
}

func (s *Serializer) appendValue(dst []byte, v Value, depth int) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if v.b {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindNumber:
		return appendNumber(dst, v.n)
	case KindString:
		return s.appendString(dst, v.s)
	case KindArray:
		return s.appendArray(dst, v.a, depth)
	case KindObject:
		return s.appendObject(dst, v.o, depth)
	}
	return dst
}

func (s *Serializer) appendArray(dst []byte, items []Value, depth int) []byte {
	dst = append(dst, '[')
	if len(items) == 0 {
		return append(dst, ']')
	}
	for i, item := range items {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = s.newlineIndent(dst, depth+1)
		dst = s.appendValue(dst, item, depth+1)
	}
	dst = s.newlineIndent(dst, depth)
	return append(dst, ']')
}

func (s *Serializer) appendObject(dst []byte, o *Object, depth int) []byte {
	dst = append(dst, '{')
	if o == nil || o.Len() == 0 {
		return append(dst, '}')
	}

	keys := o.keys
	if s.cfg.SortKeys {
		keys = append([]string(nil), keys...)
		sort.Strings(keys)
	}

	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = s.newlineIndent(dst, depth+1)
		dst = s.appendString(dst, k)
		dst = append(dst, ':')
		if s.cfg.PrettyPrint {
			dst = append(dst, ' ')
		}
		dst = s.appendValue(dst, o.m[k], depth+1)
	}
	dst = s.newlineIndent(dst, depth)
	return append(dst, '}')
}

// newlineIndent inserts the pretty-print line break and indentation; compact
// mode emits nothing.
func (s *Serializer) newlineIndent(dst []byte, depth int) []byte {
	if !s.cfg.PrettyPrint {
		return dst
	}
	dst = append(dst, '\n')
	for i := 0; i < depth*s.cfg.IndentSize; i++ {
		dst = append(dst, ' ')
	}
	return dst
}

// appendNumber folds doubles that equal their int64 truncation into integer
// form; everything else gets 15 significant decimal digits.
func appendNumber(dst []byte, n float64) []byte {
	if n == math.Trunc(n) && n >= math.MinInt64 && n < float64(math.MaxInt64) {
		return strconv.AppendInt(dst, int64(n), 10)
	}
	return strconv.AppendFloat(dst, n, 'g', 15, 64)
}

func (s *Serializer) appendString(dst []byte, str string) []byte {
	escapeAll := s.cfg.EnsureASCII || s.cfg.EscapeUnicode
	dst = append(dst, '"')
	for i := 0; i < len(str); {
		c := str[i]
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
			i++
		case c == '\\':
			dst = append(dst, '\\', '\\')
			i++
		case c == '\b':
			dst = append(dst, '\\', 'b')
			i++
		case c == '\f':
			dst = append(dst, '\\', 'f')
			i++
		case c == '\n':
			dst = append(dst, '\\', 'n')
			i++
		case c == '\r':
			dst = append(dst, '\\', 'r')
			i++
		case c == '\t':
			dst = append(dst, '\\', 't')
			i++
		case c < 0x20:
			dst = appendUnicodeEscape(dst, rune(c))
			i++
		case c < utf8.RuneSelf:
			dst = append(dst, c)
			i++
		default:
			r, size := utf8.DecodeRuneInString(str[i:])
			if escapeAll {
				if r > 0xFFFF {
					r1, r2 := utf16SurrogatePair(r)
					dst = appendUnicodeEscape(dst, r1)
					dst = appendUnicodeEscape(dst, r2)
				} else {
					dst = appendUnicodeEscape(dst, r)
				}
			} else {
				dst = append(dst, str[i:i+size]...)
			}
			i += size
		}
	}
	return append(dst, '"')
}

// appendUnicodeEscape writes \uXXXX with lowercase hex padded to 4 digits.
func appendUnicodeEscape(dst []byte, r rune) []byte {
	const hex = "0123456789abcdef"
	return append(dst, '\\', 'u',
		hex[(r>>12)&0xF], hex[(r>>8)&0xF], hex[(r>>4)&0xF], hex[r&0xF])
}

func utf16SurrogatePair(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r >> 10), 0xDC00 + (r & 0x3FF)
}
