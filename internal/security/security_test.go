package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPathWithinProject(t *testing.T) {
	tests := []struct {
		name string
		path string
		root string
		want bool
	}{
		{"file inside root", "/srv/workspace/app/main.go", "/srv/workspace/app", true},
		{"root itself", "/srv/workspace/app", "/srv/workspace/app", true},
		{"sibling directory", "/srv/workspace/other", "/srv/workspace/app", false},
		{"prefix but not child", "/srv/workspace/app-evil/x", "/srv/workspace/app", false},
		{"traversal escapes root", "/srv/workspace/app/../../etc/passwd", "/srv/workspace/app", false},
		{"traversal stays inside", "/srv/workspace/app/sub/../main.go", "/srv/workspace/app", true},
		{"trailing slash on root", "/srv/workspace/app/main.go", "/srv/workspace/app/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPathWithinProject(tt.path, tt.root))
		})
	}
}

func TestSanitizeShellInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"metacharacters removed", "rm -rf /; echo done", "rm -rf / echo done"},
		{"subshell stripped", "$(whoami)", "whoami"},
		{"backticks stripped", "`id`", "id"},
		{"pipes and redirects stripped", "a | b > c < d", "a  b  c  d"},
		{"backslash escaped", `a\b`, `a\\b`},
		{"single quote escaped", "it's", `it\'s`},
		{"double quote escaped", `say "hi"`, `say \"hi\"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeShellInput(tt.input))
		})
	}
}

func TestIsAllowedFileExtension(t *testing.T) {
	allowed := []string{".png", ".jpg", ".svg"}

	assert.True(t, IsAllowedFileExtension("logo.png", allowed))
	assert.True(t, IsAllowedFileExtension("photo.JPG", allowed))
	assert.False(t, IsAllowedFileExtension("script.sh", allowed))
	assert.False(t, IsAllowedFileExtension("noextension", allowed))
	assert.False(t, IsAllowedFileExtension("archive.png.tar", allowed))
}

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(48)
	require.NoError(t, err)
	assert.Len(t, token, 48)

	for _, r := range token {
		assert.True(t, strings.ContainsRune(tokenAlphabet, r), "unexpected character %q", r)
	}

	// Zero length falls back to the default.
	token, err = GenerateSecureToken(0)
	require.NoError(t, err)
	assert.Len(t, token, 32)

	other, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
