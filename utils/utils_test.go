package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAddToLogMessage(t *testing.T) {
	var b strings.Builder
	AddToLogMessage(&b, "[Detect API] start")
	AddToLogMessage(&b, "pieces=2")
	if got := b.String(); got != "[Detect API] start;\npieces=2;\n" {
		t.Errorf("log = %q", got)
	}
}

func TestRespondFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	var b strings.Builder
	RespondFailure(rec, &b, "Session expired. Please rescan.", http.StatusOK)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false || body["message"] != "Session expired. Please rescan." {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(b.String(), "Session expired") {
		t.Error("message not logged")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/detect", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestResolveShortenedURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/product/42-p-42", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/product/42-p-42", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := ResolveShortenedURL(context.Background(), srv.URL+"/s/abc")
	if err != nil {
		t.Fatal(err)
	}
	if got != srv.URL+"/product/42-p-42" {
		t.Errorf("resolved = %q", got)
	}
}

func TestDownloadImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(buf.Bytes())
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>hello</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, mimeType, err := downloadImage(context.Background(), srv.Client(), srv.URL+"/photo")
	if err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	if mimeType != "image/png" || len(data) != buf.Len() {
		t.Errorf("got %s, %d bytes", mimeType, len(data))
	}

	if _, _, err := downloadImage(context.Background(), srv.Client(), srv.URL+"/page"); err == nil {
		t.Error("expected an error for an html page")
	}
	if _, _, err := downloadImage(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Error("expected an error for a 404")
	}

	// The public entry point refuses the loopback test server itself.
	if _, _, err := DownloadImage(context.Background(), srv.URL+"/photo"); !errors.Is(err, ErrPrivateHost) {
		t.Errorf("loopback download err = %v, want ErrPrivateHost", err)
	}
}

func TestDownloadImageRejectsInternalURLs(t *testing.T) {
	tests := []string{
		"file:///etc/passwd",
		"gopher://example.com/x",
		"http://localhost:8080/admin",
		"http://127.0.0.1/photo.jpg",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.5/photo.jpg",
		"http://192.168.1.1/photo.jpg",
		"http://[::1]/photo.jpg",
		"http://metadata.google.internal/computeMetadata/v1/",
	}
	for _, u := range tests {
		if _, _, err := DownloadImage(context.Background(), u); err == nil {
			t.Errorf("DownloadImage(%q) succeeded, want an error", u)
		}
	}
}

func TestDialerRefusesPrivateAddresses(t *testing.T) {
	tests := []struct {
		address string
		public  bool
	}{
		{"127.0.0.1:80", false},
		{"10.1.2.3:443", false},
		{"169.254.169.254:80", false},
		{"[fe80::1]:80", false},
		{"93.184.216.34:443", true},
	}
	for _, tt := range tests {
		err := publicOnly("tcp", tt.address, nil)
		if (err == nil) != tt.public {
			t.Errorf("publicOnly(%q) err = %v, want public=%v", tt.address, err, tt.public)
		}
	}
}
