package storage

import (
	"mime"
	"path/filepath"
)

// MediaTypeFor guesses a MIME type from the file extension, or "".
func MediaTypeFor(name string) string {
	return mime.TypeByExtension(filepath.Ext(name))
}
