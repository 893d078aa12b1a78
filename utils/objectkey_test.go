package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^images/\d{8}_\d{6}_[0-9a-f-]{36}_cat\.png$`)

func TestObjectKey_Layout(t *testing.T) {
	key := ObjectKey("images", "", "cat.png", "")
	assert.Regexp(t, keyPattern, key)
}

func TestObjectKey_Deterministic(t *testing.T) {
	n := KeyNamer{
		Now:   func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) },
		NewID: func() string { return "id" },
	}
	assert.Equal(t, "audio/user-42/20250304_050607_id_take-1.wav", n.ObjectKey("audio", "user 42", "take 1.wav", ""))
	assert.Equal(t, "generated/code/20250304_050607_id_snippet.png", n.ObjectKey("generated/code", "", "snippet", ".png"))
	assert.Equal(t, "generated/code/20250304_050607_id_Shot.PNG", n.ObjectKey("generated/code", "", "Shot.PNG", ".png"))
}

func TestObjectKey_DistinctForIdenticalInput(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		key := ObjectKey("images", "owner", "cat.png", "")
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
	}
}

func TestObjectKey_NoTraversal(t *testing.T) {
	n := KeyNamer{Now: time.Now, NewID: func() string { return "id" }}
	key := n.ObjectKey("../images/./", "..", "../../etc/passwd", "")
	assert.NotContains(t, key, "..")
	assert.Regexp(t, `^images/\d{8}_\d{6}_id_passwd$`, key)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "file", SanitizeFilename(""))
	assert.Equal(t, "file", SanitizeFilename("///"))
	assert.Equal(t, "weird-name--.png", SanitizeFilename("../weird name!!.png"))
	assert.Equal(t, "report.pdf", SanitizeFilename(`C:\tmp\report.pdf`))
}
