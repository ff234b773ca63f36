package vericloud

import (
	"net/http"
	"unicode/utf8"
)

// IsText reports whether b is valid UTF-8 and therefore renderable as
// inline text content.
func IsText(b []byte) bool {
	return utf8.Valid(b)
}

// DetectContentType sniffs a MIME type from the first bytes of b. Used when
// a client declares no content type on upload.
func DetectContentType(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return http.DetectContentType(b)
}
