package image

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// widePNG encodes a black 1x1 PNG and rewrites its header to declare w x h
// pixels, so only the header is trustworthy.
func widePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, 1, 1, color.Black)
	// IHDR data starts after the 8-byte signature and the chunk's length and type.
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode(t *testing.T) {
	valid := encodePNG(t, 4, 3, color.NRGBA{R: 128, B: 32, A: 255})

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    bool
	}{
		{name: "png", data: valid, wantFormat: "png"},
		{name: "empty", data: nil, wantErr: true},
		{name: "text", data: []byte("definitely not an image"), wantErr: true},
		{name: "truncated png", data: valid[:20], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := Decode(tt.data)
			if tt.wantErr {
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("Decode() error = %v, want *DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("Decode() format = %q, want %q", format, tt.wantFormat)
			}
			if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
				t.Errorf("Decode() bounds = %v, want 4x3", b)
			}
		})
	}
}

func TestDecodeEmptyWrapsErrNoData(t *testing.T) {
	_, _, err := Decode([]byte{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Decode(empty) error = %v, want ErrNoData", err)
	}
}

func TestDecodeRejectsTooManyPixels(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{name: "square", w: 20000, h: 20000},
		{name: "wide strip", w: 1 << 30, h: 1},
		{name: "just over", w: 10000, h: 5001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(widePNG(t, tt.w, tt.h))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("Decode() error = %v, want *DecodeError", err)
			}
			if !errors.Is(err, ErrTooManyPixels) {
				t.Errorf("Decode() error = %v, want ErrTooManyPixels", err)
			}
		})
	}
}

func TestDecodeChecksHeaderWithinLimit(t *testing.T) {
	// A header under the limit gets past the pixel check and fails on the
	// missing pixel data instead.
	_, _, err := Decode(widePNG(t, 100, 100))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
	if errors.Is(err, ErrTooManyPixels) {
		t.Errorf("Decode() error = %v, should not be ErrTooManyPixels", err)
	}
}

func TestReadAll(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)

	got, err := ReadAll(bytes.NewReader(data), 100)
	if err != nil {
		t.Fatalf("ReadAll() at limit error = %v", err)
	}
	if len(got) != 100 {
		t.Errorf("ReadAll() read %d bytes, want 100", len(got))
	}

	if _, err := ReadAll(bytes.NewReader(data), 99); !errors.Is(err, ErrTooLarge) {
		t.Errorf("ReadAll() over limit error = %v, want ErrTooLarge", err)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outfit.png")
	want := encodePNG(t, 2, 2, color.Black)
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}

	loader := NewFileLoader()
	got, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Load() returned different bytes")
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty path", path: "", want: "cannot be empty"},
		{name: "missing", path: filepath.Join(dir, "missing.png"), want: "not found"},
		{name: "directory", path: dir, want: "directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load(%q) error = %v, want it to mention %q", tt.path, err, tt.want)
			}
		})
	}

	small := &FileLoader{MaxBytes: 8}
	if _, err := small.Load(context.Background(), path); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Load() with small limit error = %v, want ErrTooLarge", err)
	}
}

func TestSmartLoaderRejectsUnsafeURLs(t *testing.T) {
	loader := NewSmartLoader()
	for _, url := range []string{
		"http://example.com/outfit.png",
		"https://localhost/outfit.png",
		"https://192.168.1.10/outfit.png",
	} {
		if _, err := loader.Load(context.Background(), url); err == nil {
			t.Errorf("Load(%q) should fail", url)
		}
	}
}

func TestValidateImagePath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(good, encodePNG(t, 1, 1, color.White), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid file", path: good},
		{name: "https url", path: "https://shop.example.com/look.jpg"},
		{name: "empty", path: "", wantErr: true},
		{name: "missing", path: filepath.Join(dir, "none.png"), wantErr: true},
		{name: "not an image", path: bad, wantErr: true},
		{name: "directory", path: dir, wantErr: true},
		{name: "plain http", path: "http://shop.example.com/look.jpg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImagePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImagePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"look.JPG":  true,
		"look.jpeg": true,
		"look.webp": true,
		"look.gif":  true,
		"look.bmp":  false,
		"look":      false,
	}
	for path, want := range tests {
		if got := IsImageFile(path); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", path, got, want)
		}
	}
}
