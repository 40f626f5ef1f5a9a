// Package security provides validation utilities that keep plugin installs
// inside their install root.
package security

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidPluginName is returned (wrapped) for any plugin name that fails validation.
var ErrInvalidPluginName = errors.New("invalid plugin name")

var pluginNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidatePluginName checks that a plugin name is safe to use as a single
// directory name under the install root.
func ValidatePluginName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPluginName)
	}

	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains path traversal characters", ErrInvalidPluginName, name)
	}

	if !pluginNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must contain only letters, numbers, hyphens and underscores", ErrInvalidPluginName, name)
	}

	return nil
}

// ValidateHTTPURL validates an HTTP(S) URL for safe downloads.
// Only allows HTTPS from non-local hosts.
func ValidateHTTPURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("only HTTPS URLs are allowed (got %s)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	host := strings.ToLower(parsed.Hostname())
	if isLocalOrPrivateHost(host) {
		return fmt.Errorf("URL cannot point to local or private hosts: %s", host)
	}

	return nil
}

// ValidatePluginPath checks that pluginPath resolves inside baseDir.
func ValidatePluginPath(pluginPath, baseDir string) error {
	if pluginPath == "" {
		return fmt.Errorf("empty plugin path")
	}

	absPath, err := filepath.Abs(pluginPath)
	if err != nil {
		return fmt.Errorf("invalid plugin path: %w", err)
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("invalid base directory: %w", err)
	}

	if !within(absPath, absBase) {
		return fmt.Errorf("path traversal: plugin path %s is outside %s", pluginPath, baseDir)
	}
	return nil
}

// ValidateFilePath checks an archive entry name. Absolute names and names
// with a ".." element are rejected; dots inside an element ("a..b") are fine.
func ValidateFilePath(filePath, baseDir string) error {
	switch {
	case filePath == "":
		return fmt.Errorf("empty file path")
	case filepath.IsAbs(filePath) || strings.HasPrefix(filePath, "/"):
		return fmt.Errorf("absolute path %q not allowed in archive", filePath)
	case HasParentRef(filePath):
		return fmt.Errorf("path %q contains a '..' element", filePath)
	}

	if !within(filepath.Join(baseDir, filePath), filepath.Clean(baseDir)) {
		return fmt.Errorf("path %q would escape %s", filePath, baseDir)
	}
	return nil
}

// HasParentRef reports whether any element of p is "..". Both slash and
// backslash count as separators, since archive names may use either.
func HasParentRef(p string) bool {
	elems := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(elems, "..")
}

// within reports whether path equals base or lies below it. Both must be clean.
func within(path, base string) bool {
	path = filepath.Clean(path)
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}

// LimitedReader wraps an io.Reader and limits the total bytes that can be read.
// This prevents decompression bomb attacks when extracting archives.
type LimitedReader struct {
	R         io.Reader
	Remaining int64
}

// Read implements io.Reader with size limits.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Remaining <= 0 {
		return 0, fmt.Errorf("decompression size limit exceeded")
	}
	if int64(len(p)) > l.Remaining {
		p = p[:l.Remaining]
	}
	n, err := l.R.Read(p)
	l.Remaining -= int64(n)
	return n, err
}

// NewLimitedReader creates a new LimitedReader with the specified size limit.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{
		R:         r,
		Remaining: maxBytes,
	}
}

// isLocalOrPrivateHost checks if a hostname is localhost or a private IP.
func isLocalOrPrivateHost(host string) bool {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	for _, prefix := range []string{"192.168.", "10.", "169.254.", "fe80:", "fc00:", "fd00:"} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}

	// 172.16.0.0/12
	for i := 16; i <= 31; i++ {
		if strings.HasPrefix(host, fmt.Sprintf("172.%d.", i)) {
			return true
		}
	}

	return false
}
