package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/recommend"
)

func testServer(t *testing.T, entries []catalog.ReferenceColor, opts Options) *httptest.Server {
	t.Helper()
	store := catalog.NewStaticStore(catalog.MustNew(entries))
	s := New(opts, store, recommend.New(recommend.Options{}, nil), nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func shopEntries() []catalog.ReferenceColor {
	return []catalog.ReferenceColor{
		{Name: "Maroon", Hex: "#800020", URL: "https://shop.example.com/maroon", Stock: 5},
		{Name: "Navy", Hex: "#1e3a8a", URL: "https://shop.example.com/navy", Stock: 0},
		{Name: "Forest", Hex: "#228B22", URL: "https://shop.example.com/forest", Stock: 3},
		{Name: "Beige", Hex: "#F5F5DC", URL: "https://shop.example.com/beige", Stock: 2},
		{Name: "Black", Hex: "#000000", URL: "https://shop.example.com/black", Stock: 9},
	}
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// hugePNG is a small PNG whose header declares 20000x20000 pixels.
func hugePNG(t *testing.T) []byte {
	t.Helper()
	data := solidPNG(t, color.Black)
	binary.BigEndian.PutUint32(data[16:], 20000)
	binary.BigEndian.PutUint32(data[20:], 20000)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// upload posts a multipart form. A nil image omits the file field.
func upload(t *testing.T, url string, img []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if img != nil {
		fw, err := mw.CreateFormFile("image", "outfit.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(img); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/api/match", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /api/match error = %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" || body["catalog_size"] != float64(5) {
		t.Errorf("body = %v", body)
	}
}

func TestMatch(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp := upload(t, ts.URL, solidPNG(t, color.NRGBA{R: 128, G: 0, B: 32, A: 255}), nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decode[recommend.RecommendationJSON](t, resp)
	if body.Dominant != "#800020" {
		t.Errorf("dominant = %s, want #800020", body.Dominant)
	}
	if len(body.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(body.Results))
	}
	first := body.Results[0]
	if first.Name != "Maroon" || first.Score != 100 || first.URL != "https://shop.example.com/maroon" {
		t.Errorf("first result = %+v", first)
	}
	if last := body.Results[len(body.Results)-1]; last.Score != 0 {
		t.Errorf("last score = %v, want 0", last.Score)
	}
	for _, r := range body.Results {
		if !r.InStock {
			t.Errorf("out of stock %s returned", r.Name)
		}
	}
}

func TestMatchOptions(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp := upload(t, ts.URL, solidPNG(t, color.NRGBA{R: 34, G: 139, B: 34, A: 255}), map[string]string{
		"top":       "4",
		"colours":   "2",
		"quality":   "1",
		"algorithm": "KMeans",
		"metric":    "ciede2000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[recommend.RecommendationJSON](t, resp)
	if len(body.Results) != 4 {
		t.Errorf("got %d results, want 4", len(body.Results))
	}
	if body.Results[0].Name != "Forest" {
		t.Errorf("best = %s, want Forest", body.Results[0].Name)
	}
}

func TestMatchErrors(t *testing.T) {
	valid := solidPNG(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	tests := []struct {
		name       string
		entries    []catalog.ReferenceColor
		opts       Options
		image      []byte
		fields     map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "not an image",
			image:      []byte("this is a text file"),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  recommend.InvalidImageMessage,
		},
		{
			name:       "empty file",
			image:      []byte{},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  recommend.InvalidImageMessage,
		},
		{
			name:       "fully transparent",
			image:      solidPNG(t, color.NRGBA{}),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  recommend.InvalidImageMessage,
		},
		{
			name:       "missing image",
			fields:     map[string]string{"top": "2"},
			wantStatus: http.StatusBadRequest,
			wantError:  `missing "image" file field`,
		},
		{
			name:       "bad top",
			image:      valid,
			fields:     map[string]string{"top": "three"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero top",
			image:      valid,
			fields:     map[string]string{"top": "0"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "too many colours",
			image:      valid,
			fields:     map[string]string{"colours": "1000"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown metric",
			image:      valid,
			fields:     map[string]string{"metric": "manhattan"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown algorithm",
			image:      valid,
			fields:     map[string]string{"algorithm": "octree"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "oversized field",
			image:      valid,
			fields:     map[string]string{"metric": strings.Repeat("x", 1024)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "too large",
			opts:       Options{MaxUploadBytes: 512},
			image:      bytes.Repeat([]byte{0x89}, 4096),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "too many pixels",
			image:      hugePNG(t),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "image dimensions too large (limit 50 megapixels)",
		},
		{
			name:       "empty catalog",
			entries:    []catalog.ReferenceColor{},
			image:      valid,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := tt.entries
			if entries == nil {
				entries = shopEntries()
			}
			ts := testServer(t, entries, tt.opts)
			resp := upload(t, ts.URL, tt.image, tt.fields)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := decode[errorBody](t, resp)
			if body.Error == "" {
				t.Error("error body is empty")
			}
			if tt.wantError != "" && body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestMatchRequiresMultipart(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp, err := http.Post(ts.URL+"/api/match", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCatalogPages(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})

	tests := []struct {
		query      string
		wantStatus int
		wantNames  []string
		wantPages  int
	}{
		{query: "", wantStatus: http.StatusOK, wantNames: []string{"Maroon", "Navy", "Forest", "Beige", "Black"}, wantPages: 1},
		{query: "?page=2&per_page=2", wantStatus: http.StatusOK, wantNames: []string{"Forest", "Beige"}, wantPages: 3},
		{query: "?page=3&per_page=2", wantStatus: http.StatusOK, wantNames: []string{"Black"}, wantPages: 3},
		{query: "?page=9&per_page=2", wantStatus: http.StatusOK, wantNames: []string{}, wantPages: 3},
		{query: "?page=0", wantStatus: http.StatusBadRequest},
		{query: "?per_page=500", wantStatus: http.StatusBadRequest},
		{query: "?page=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/catalog" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			page := decode[catalogPage](t, resp)
			if page.Total != 5 || page.InStock != 4 || page.Pages != tt.wantPages {
				t.Errorf("page = %+v", page)
			}
			if len(page.Colours) != len(tt.wantNames) {
				t.Fatalf("got %d colours, want %d", len(page.Colours), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if page.Colours[i].Name != name {
					t.Errorf("colours[%d] = %s, want %s", i, page.Colours[i].Name, name)
				}
			}
		})
	}
}

func TestIndex(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	html, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`action="/api/match"`, "5 catalog shades", "10 MiB", `value="mediancut" selected`, `value="redmean" selected`} {
		if !strings.Contains(string(html), want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestNotFound(t *testing.T) {
	ts := testServer(t, shopEntries(), Options{})
	resp, err := http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/api/match")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/match status = %d, want 405", resp2.StatusCode)
	}
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := New(Options{}, catalog.NewStaticStore(catalog.MustNew(shopEntries())), recommend.New(recommend.Options{}, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(ShutdownTimeout):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		10 << 20: "10 MiB",
		512:      "512 bytes",
		2048:     "2 KiB",
		1500:     "1500 bytes",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
