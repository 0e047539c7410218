// Package image provides utilities for loading and decoding outfit photos.
package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format
	_ "image/jpeg" // Register JPEG format
	_ "image/png"  // Register PNG format
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/webp" // Register WebP format

	"github.com/jmylchreest/huematch/internal/security"
	httputil "github.com/jmylchreest/huematch/internal/util/http"
)

const (
	// DefaultMaxBytes bounds how much image data a loader will read.
	DefaultMaxBytes int64 = 32 << 20

	// MaxPixels bounds the decoded size of an image. Compressed formats can
	// describe far more pixels than their byte size suggests.
	MaxPixels int64 = 50_000_000
)

var (
	// ErrNoData is wrapped by DecodeError when the input is empty.
	ErrNoData = errors.New("no image data")

	// ErrTooLarge is returned when image data exceeds the configured limit.
	ErrTooLarge = errors.New("image too large")

	// ErrTooManyPixels is wrapped by DecodeError when the image header
	// declares more than MaxPixels pixels.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// DecodeError reports bytes that could not be decoded as a supported image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes PNG, JPEG, GIF or WebP data and reports the detected format.
// The header is checked against MaxPixels before any pixel data is decoded.
// Any failure, including empty input, is returned as a *DecodeError.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: ErrNoData}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return nil, "", &DecodeError{
			Err: fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	return img, format, nil
}

// ReadAll reads r fully, failing with ErrTooLarge once more than maxBytes are
// available. A non-positive maxBytes uses DefaultMaxBytes.
func ReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(security.NewLimitedReader(r, maxBytes))
	if err != nil {
		if errors.Is(err, security.ErrSizeLimit) {
			return nil, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, maxBytes)
		}
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// Loader handles loading raw image data from various sources.
type Loader interface {
	// Load returns the encoded image found at path.
	Load(ctx context.Context, path string) ([]byte, error)
}

// FileLoader loads images from the local filesystem.
type FileLoader struct {
	MaxBytes int64
}

// NewFileLoader creates a new FileLoader instance.
func NewFileLoader() *FileLoader {
	return &FileLoader{MaxBytes: DefaultMaxBytes}
}

// Load reads an image file.
func (l *FileLoader) Load(_ context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	return ReadAll(file, l.MaxBytes)
}

// SmartLoader loads images from both local files and HTTPS URLs.
type SmartLoader struct {
	fileLoader *FileLoader
}

// NewSmartLoader creates a new SmartLoader instance.
func NewSmartLoader() *SmartLoader {
	return &SmartLoader{
		fileLoader: NewFileLoader(),
	}
}

// Load loads an image from either a local file path or HTTPS URL.
func (l *SmartLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if IsURL(path) {
		return l.loadFromURL(ctx, path)
	}
	return l.fileLoader.Load(ctx, path)
}

func (l *SmartLoader) loadFromURL(ctx context.Context, url string) ([]byte, error) {
	if err := security.ValidateHTTPURL(url); err != nil {
		return nil, err
	}
	data, err := httputil.Fetch(ctx, url, httputil.FetchOptions{
		MaxBytes:         l.fileLoader.MaxBytes,
		ValidateRedirect: security.ValidateHTTPURL,
	})
	if err != nil {
		if errors.Is(err, security.ErrSizeLimit) {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, url)
		}
		return nil, fmt.Errorf("failed to fetch image from URL: %w", err)
	}
	return data, nil
}

// IsURL reports whether path should be fetched over HTTP.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// ValidateImagePath checks if the given path points to a supported image.
// Local files are checked by decoding their header; URLs are only checked
// for shape, since fetching happens later.
func ValidateImagePath(path string) error {
	if path == "" {
		return fmt.Errorf("image path cannot be empty")
	}

	if IsURL(path) {
		return security.ValidateHTTPURL(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("image file not found: %s", path)
		}
		return fmt.Errorf("failed to access image path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	if _, _, err := image.DecodeConfig(file); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// SupportedImageExtensions returns a list of supported image file extensions.
func SupportedImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
}

// IsImageFile checks if a file has a supported image extension.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(SupportedImageExtensions(), ext)
}
