package vericloud

import (
	"path"
	"strings"
	"time"
)

// MetadataSchemaVersion is stamped into every persisted record so future
// field additions can be tolerated on read.
const MetadataSchemaVersion = 1

// FileMetadata is the structured description of a stored file. The record is
// created together with its blob on upload and removed together with it on
// delete. The identifier, original name, stored name, and location never
// change after creation; size, content type, and UpdatedAt change on update.
type FileMetadata struct {
	ID            string     `json:"id"`
	OriginalName  string     `json:"original_name"`
	StoredName    string     `json:"stored_name"`
	Size          int64      `json:"size"`
	ContentType   string     `json:"content_type"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Location      string     `json:"location"`
	SchemaVersion int        `json:"schema_version"`
}

// FileContent is the decoded text content of a stored file.
type FileContent struct {
	Content  string `json:"content"`
	FileName string `json:"filename"`
	Size     int64  `json:"size"`
}

// DownloadResult carries raw blob bytes together with the originally
// declared name and content type for transport-level delivery.
type DownloadResult struct {
	Data        []byte
	FileName    string
	ContentType string
}

// StoredName derives the blob storage key for an identifier and a
// user-supplied filename. The filename is sanitized first: clients control
// it, and a raw value like "../../etc/passwd" must never reach a
// filesystem-backed store.
func StoredName(id, originalName string) string {
	return id + "_" + SanitizeFileName(originalName)
}

// SanitizeFileName strips path components and replaces characters that are
// unsafe in storage keys. An empty or fully-stripped name becomes "file".
func SanitizeFileName(name string) string {
	// Drop any directory part, tolerating both separator styles.
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
