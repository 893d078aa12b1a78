package utils

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrEmptyPayload = errors.New("payload is empty")

// StripDataURL removes a leading "data:<type>;base64," prefix. Input without
// the prefix is returned unchanged, so applying it twice is harmless.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return s
	}
	idx := strings.Index(s, ",")
	if idx < 0 {
		return s
	}
	if !strings.HasSuffix(strings.ToLower(s[:idx]), ";base64") {
		return s
	}
	return s[idx+1:]
}

// DataURLType returns the media type declared by a data URL prefix, if any.
func DataURLType(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return ""
	}
	header, _, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(mediaType)
}

// DecodeBase64 decodes a base64 payload, optionally wrapped in a data URL.
// Standard, unpadded and URL-safe alphabets are accepted; whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(StripDataURL(s)), "")
	if s == "" {
		return nil, ErrEmptyPayload
	}
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
