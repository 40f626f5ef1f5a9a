package compression

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/gh-please/internal/security"
)

// extractTar writes every entry of the tar stream below destDir and returns
// the number of entries written.
func extractTar(r io.Reader, destDir string) (int, error) {
	tr := tar.NewReader(r)
	count := 0

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read tar archive: %w", err)
		}

		if err := security.ValidateFilePath(header.Name, destDir); err != nil {
			return count, fmt.Errorf("unsafe archive entry %q: %w", header.Name, err)
		}
		destPath := filepath.Join(destDir, header.Name)
		if err := ensureNoSymlinkParents(destDir, header.Name); err != nil {
			return count, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return count, fmt.Errorf("failed to create directory %s: %w", header.Name, err)
			}

		case tar.TypeReg:
			if err := writeFile(tr, destPath, header.FileInfo().Mode().Perm()); err != nil {
				return count, err
			}

		case tar.TypeSymlink:
			if err := validateLinkname(header.Linkname); err != nil {
				return count, fmt.Errorf("unsafe symlink %q -> %q: %w", header.Name, header.Linkname, err)
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return count, fmt.Errorf("failed to create directory for %s: %w", header.Name, err)
			}
			_ = os.Remove(destPath)
			if err := os.Symlink(header.Linkname, destPath); err != nil {
				return count, fmt.Errorf("failed to create symlink %s: %w", header.Name, err)
			}

		default:
			// Hard links, devices and FIFOs are not needed by plugins.
			continue
		}

		count++
	}
}

func writeFile(r io.Reader, destPath string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}

	if perm == 0 {
		perm = 0o644
	}

	if info, err := os.Lstat(destPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace symlink %s: %w", destPath, err)
		}
	}

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 - Destination validated against target directory
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to extract %s: %w", filepath.Base(destPath), copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(destPath), closeErr)
	}
	return nil
}

// validateLinkname accepts only relative link targets that never step
// upward, so a link resolves below its own directory.
func validateLinkname(linkname string) error {
	if linkname == "" {
		return errors.New("empty link target")
	}
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return errors.New("absolute link target")
	}
	if security.HasParentRef(linkname) {
		return errors.New("link target contains '..'")
	}
	return nil
}

// ensureNoSymlinkParents refuses entries whose existing parent directories
// below destDir include a symlink. Writing through such a parent would follow
// a link created by an earlier entry.
func ensureNoSymlinkParents(destDir, name string) error {
	parent := filepath.Dir(filepath.Clean(filepath.FromSlash(name)))
	if parent == "." {
		return nil
	}

	current := destDir
	for _, elem := range strings.Split(parent, string(filepath.Separator)) {
		if elem == "" || elem == "." {
			continue
		}
		current = filepath.Join(current, elem)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("unsafe archive entry %q: parent %s is a symlink", name, elem)
		}
	}
	return nil
}

// walkTar reads the whole stream, including the compression trailer, without
// writing anything.
func walkTar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
	}

	// Drain padding so gzip verifies its checksum.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("failed to read archive trailer: %w", err)
	}
	return nil
}
