package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmylchreest/huematch/internal/security"
)

func TestFetch(t *testing.T) {
	var gotAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("outfit"))
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), server.URL, FetchOptions{
		Headers: map[string]string{"Accept": "image/*"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "outfit" {
		t.Errorf("Fetch() = %q, want %q", data, "outfit")
	}
	if gotAgent != UserAgent() {
		t.Errorf("User-Agent = %q, want %q", gotAgent, UserAgent())
	}
	if gotAccept != "image/*" {
		t.Errorf("Accept = %q, want %q", gotAccept, "image/*")
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		opts    FetchOptions
		wantErr error
		wantMsg string
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.NotFound(w, nil)
			},
			wantMsg: "HTTP 404",
		},
		{
			name: "body over limit",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("x", 64)))
			},
			opts:    FetchOptions{MaxBytes: 16},
			wantErr: security.ErrSizeLimit,
		},
		{
			name: "redirect loop",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, r.URL.Path, http.StatusFound)
			},
			wantErr: ErrTooManyRedirects,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := Fetch(context.Background(), server.URL+"/photo.png", tt.opts)
			if err == nil {
				t.Fatal("Fetch() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Fetch() error = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestFetchValidatesRedirects(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("secret"))
	}))
	defer internal.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/metadata", http.StatusFound)
	}))
	defer redirector.Close()

	t.Run("rejected hop", func(t *testing.T) {
		hits.Store(0)
		_, err := Fetch(context.Background(), redirector.URL, FetchOptions{
			ValidateRedirect: security.ValidateHTTPURL,
		})
		if err == nil {
			t.Fatal("Fetch() should refuse to follow a redirect to a loopback http URL")
		}
		if !strings.Contains(err.Error(), "redirect to") {
			t.Errorf("Fetch() error = %v, want a rejected redirect", err)
		}
		if n := hits.Load(); n != 0 {
			t.Errorf("redirect target was requested %d times, want 0", n)
		}
	})

	t.Run("no validator", func(t *testing.T) {
		hits.Store(0)
		data, err := Fetch(context.Background(), redirector.URL, FetchOptions{})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(data) != "secret" || hits.Load() != 1 {
			t.Errorf("Fetch() = %q after %d hits, want %q after 1", data, hits.Load(), "secret")
		}
	})
}
