package utils

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "20060102_150405"

// KeyNamer builds object keys. The zero value uses the wall clock and random UUIDs.
type KeyNamer struct {
	Now   func() time.Time
	NewID func() string
}

// ObjectKey returns {category}/{owner}/{timestamp}_{id}_{filename}. The owner
// segment is left out when empty. When ext is set and filename does not already
// end with it, ext is appended.
func (n KeyNamer) ObjectKey(category, owner, filename, ext string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	newID := uuid.NewString
	if n.NewID != nil {
		newID = n.NewID
	}

	name := SanitizeFilename(filename)
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}

	segments := make([]string, 0, 3)
	if c := cleanPrefix(category); c != "" {
		segments = append(segments, c)
	}
	if o := SanitizeSegment(owner); strings.Trim(o, ".") != "" {
		segments = append(segments, o)
	}
	segments = append(segments, now().UTC().Format(timestampLayout)+"_"+newID()+"_"+name)
	return strings.Join(segments, "/")
}

// ObjectKey names an object with the default KeyNamer.
func ObjectKey(category, owner, filename, ext string) string {
	return KeyNamer{}.ObjectKey(category, owner, filename, ext)
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with '-'.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}
	name = strings.Trim(SanitizeSegment(name), ".")
	if name == "" {
		return "file"
	}
	return name
}

// SanitizeSegment maps a single path segment onto a safe character set.
func SanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// cleanPrefix sanitizes every segment of a category like "generated/code",
// dropping empty, "." and ".." segments.
func cleanPrefix(category string) string {
	parts := strings.Split(strings.ReplaceAll(category, "\\", "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		p = SanitizeSegment(p)
		if p == "" || strings.Trim(p, ".") == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}
