// Package security holds the helpers shared by handlers that touch the
// local filesystem or build shell commands on behalf of a project.
package security

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
)

// IsPathWithinProject reports whether path resolves inside projectRoot.
// Both sides are cleaned and made absolute first, so `..` segments
// cannot escape the root.
func IsPathWithinProject(path, projectRoot string) bool {
	resolvedPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	resolvedRoot, err := filepath.Abs(filepath.Clean(projectRoot))
	if err != nil {
		return false
	}

	return resolvedPath == resolvedRoot ||
		strings.HasPrefix(resolvedPath, resolvedRoot+string(filepath.Separator))
}

// SanitizeShellInput strips shell metacharacters and escapes quoting
// characters so user text can be embedded in a command line.
func SanitizeShellInput(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	for _, r := range input {
		switch r {
		case ';', '&', '|', '`', '$', '(', ')', '{', '}', '[', ']', '<', '>':
			// dropped
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// IsAllowedFileExtension checks the filename's extension against an
// allow-list. Extensions are compared lowercase with the leading dot,
// e.g. ".png".
func IsAllowedFileExtension(filename string, allowedExtensions []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}

	return false
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecureToken returns a cryptographically random alphanumeric
// token of the given length (32 when length is not positive).
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}

	return string(out), nil
}
