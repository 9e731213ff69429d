package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// allowAll bypasses URL validation so tests can hit httptest's loopback
// server.
func allowAll(string) error { return nil }

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != 200 || string(res.Body) != "<html>hi</html>" {
		t.Errorf("result: %d %q", res.StatusCode, res.Body)
	}
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("content type: %q", res.ContentType)
	}
	if res.ETag != `"v1"` {
		t.Errorf("etag: %q", res.ETag)
	}
	if !res.Changed {
		t.Error("first fetch should be changed")
	}
}

func TestFetchConditionalGet(t *testing.T) {
	// WHAT: A matching ETag yields 304 and Changed=false, no body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != 304 || res.Changed || len(res.Body) != 0 {
		t.Errorf("result: %+v", res)
	}
}

func TestFetchUnchangedHash(t *testing.T) {
	// WHAT: Servers without ETag support fall back to hash comparison.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stable content"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: allowAll})
	first, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("fetch #1: %v", err)
	}
	second, err := f.Fetch(context.Background(), srv.URL, "", "", first.Hash)
	if err != nil {
		t.Fatalf("fetch #2: %v", err)
	}
	if second.Changed {
		t.Error("identical body should report unchanged")
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if res == nil || res.StatusCode != 500 {
		t.Errorf("result: %+v", res)
	}
}

func TestFetchBodyCap(t *testing.T) {
	// WHAT: Bodies larger than MaxBytes are truncated, not rejected.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 100, URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Body) != 100 {
		t.Errorf("body length: %d", len(res.Body))
	}
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/feed", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"file:///etc/passwd", false},
		{"http://localhost/admin", false},
		{"http://127.0.0.1/", false},
		{"http://10.0.0.1/", false},
		{"http://169.254.169.254/meta", false},
		{"http://0.0.0.0/", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidateURL(tc.url)
		if tc.ok && err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", tc.url, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", tc.url)
		}
	}
}

func TestFetchBlocksInvalidURL(t *testing.T) {
	f := New(Config{})
	if _, err := f.Fetch(context.Background(), "http://127.0.0.1/", "", "", ""); err == nil {
		t.Fatal("loopback URL should be blocked")
	}
}
