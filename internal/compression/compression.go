// Package compression decompresses single-file streams by their file suffix.
package compression

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/huematch/internal/security"
)

// Kind identifies a compression format.
type Kind string

const (
	None  Kind = ""
	XZ    Kind = "xz"
	Gzip  Kind = "gzip"
	Bzip2 Kind = "bzip2"
)

var suffixes = map[string]Kind{
	".xz":  XZ,
	".gz":  Gzip,
	".bz2": Bzip2,
}

// KindFromPath reports the compression implied by the file suffix and returns
// the file name with that suffix removed.
func KindFromPath(path string) (Kind, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := suffixes[ext]; ok {
		return kind, strings.TrimSuffix(path, filepath.Ext(path))
	}
	return None, path
}

// String returns the name of the kind, "none" for uncompressed data.
func (k Kind) String() string {
	if k == None {
		return "none"
	}
	return string(k)
}

// NewReader wraps r so reads return decompressed data.
func NewReader(r io.Reader, kind Kind) (io.ReadCloser, error) {
	switch kind {
	case None:
		return io.NopCloser(r), nil
	case XZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xzr), nil
	case Gzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzr, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", kind)
	}
}

// ReadAll decompresses r fully. The decompressed size is capped at maxBytes;
// exceeding it returns an error wrapping security.ErrSizeLimit.
func ReadAll(r io.Reader, kind Kind, maxBytes int64) ([]byte, error) {
	dr, err := NewReader(r, kind)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	data, err := io.ReadAll(security.NewLimitedReader(dr, maxBytes))
	if err != nil {
		if errors.Is(err, security.ErrSizeLimit) {
			return nil, fmt.Errorf("decompressed data exceeds %d bytes: %w", maxBytes, err)
		}
		return nil, fmt.Errorf("failed to decompress %s data: %w", kind, err)
	}
	return data, nil
}
