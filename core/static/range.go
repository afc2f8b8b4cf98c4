package static

import (
	"strconv"
	"strings"
)

// byteRange is a resolved absolute byte interval [Start, End].
type byteRange struct {
	Start int64
	End   int64
}

// parseRangeHeader resolves a "bytes=" range header against the file size.
// Supported forms: bytes=start-end, bytes=start-, bytes=-suffix. Multiple
// ranges, malformed specs and out-of-bounds intervals are rejected.
func parseRangeHeader(header string, size int64) (byteRange, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.ContainsRune(spec, ',') {
		return byteRange{}, false
	}

	dash := strings.IndexByte(spec, '-')
	if dash == -1 {
		return byteRange{}, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix form: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, false
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		if size == 0 {
			return byteRange{}, false
		}
		return byteRange{Start: start, End: size - 1}, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return byteRange{}, false
		}
	}

	if start > end || end >= size {
		return byteRange{}, false
	}
	return byteRange{Start: start, End: end}, true
}
