// Package static serves files from disk through a size-bounded cache of
// read-only memory mappings, with conditional revalidation, byte ranges and
// lazy gzip variants.
package static

import "strings"

// mimeTypes maps a lowercased file extension to its content type.
var mimeTypes = map[string]string{
	// Text
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "text/xml",
	".txt":  "text/plain",

	// Images
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",

	// Fonts
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",

	// Video
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",

	// Archives
	".zip": "application/zip",
	".gz":  "application/gzip",
	".tar": "application/x-tar",

	// Documents
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// MimeType returns the content type for a file path, defaulting to
// application/octet-stream.
func MimeType(path string) string {
	ext := strings.ToLower(FileExtension(path))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return "application/octet-stream"
}

// FileExtension returns the extension including the dot, or "".
func FileExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/':
			return ""
		}
	}
	return ""
}
