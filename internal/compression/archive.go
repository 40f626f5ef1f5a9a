// Package compression extracts, validates and cleans up plugin release tarballs.
package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/gh-please/internal/security"
)

// DefaultMaxSize bounds the decompressed size of a single archive.
const DefaultMaxSize int64 = 512 * 1024 * 1024

// Format identifies the compression wrapping a tar stream.
type Format string

const (
	FormatUnknown Format = ""
	FormatGzip    Format = "gzip"
	FormatXz      Format = "xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ErrUnsupportedFormat is returned when an archive is neither gzip nor xz compressed.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Service extracts tarballs to disk.
type Service struct {
	maxSize int64
	logger  hclog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxSize overrides the decompressed size limit.
func WithMaxSize(n int64) Option {
	return func(s *Service) {
		s.maxSize = n
	}
}

// WithLogger sets the logger used for extraction progress.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates an archive service.
func NewService(opts ...Option) *Service {
	s := &Service{
		maxSize: DefaultMaxSize,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractTarball extracts archivePath into targetDir, creating targetDir if needed.
func (s *Service) ExtractTarball(archivePath, targetDir string) error {
	f, err := os.Open(archivePath) // #nosec G304 - Archive path controlled by application
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive not found: %s", archivePath)
		}
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	stream, err := decompress(f)
	if err != nil {
		return err
	}
	defer stream.Close()

	s.logger.Debug("extracting archive", "archive", archivePath, "target", targetDir)

	n, err := extractTar(security.NewLimitedReader(stream, s.maxSize), targetDir)
	if err != nil {
		return err
	}

	s.logger.Debug("extracted archive", "archive", archivePath, "entries", n)
	return nil
}

// CleanupArchive removes an archive. A missing file is not an error.
func (s *Service) CleanupArchive(archivePath string) error {
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	return nil
}

// ValidateTarball reports whether archivePath is a readable compressed tar archive.
// Missing and malformed files yield false.
func (s *Service) ValidateTarball(archivePath string) bool {
	f, err := os.Open(archivePath) // #nosec G304 - Archive path controlled by application
	if err != nil {
		return false
	}
	defer f.Close()

	stream, err := decompress(f)
	if err != nil {
		return false
	}
	defer stream.Close()

	if err := walkTar(security.NewLimitedReader(stream, s.maxSize)); err != nil {
		s.logger.Debug("archive failed validation", "archive", archivePath, "error", err)
		return false
	}
	return true
}

// DetectFormat sniffs the compression format from the leading bytes of a file.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(header, xzMagic):
		return FormatXz
	default:
		return FormatUnknown
	}
}

// decompress wraps r in the decompressor matching its magic bytes.
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read archive header: %w", err)
	}

	switch DetectFormat(header) {
	case FormatGzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzr, nil
	case FormatXz:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xzr), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
