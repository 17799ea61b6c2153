package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"calgrid/internal/render"
)

func TestValidate(t *testing.T) {
	if _, err := (Options{OutputPath: "x.png"}).validate(); err == nil {
		t.Errorf("missing URL should fail")
	}
	if _, err := (Options{URL: "http://127.0.0.1/"}).validate(); err == nil {
		t.Errorf("missing output path should fail")
	}

	o, err := Options{URL: "http://127.0.0.1/", OutputPath: "x.png"}.validate()
	if err != nil {
		t.Fatal(err)
	}
	if o.Width != render.DefaultWidth || o.Height != render.DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("defaults not applied: %+v", o)
	}
}

func TestCapturePNGRejectsBadOptions(t *testing.T) {
	if err := CapturePNG(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	if err := writeFileAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeFileAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "two" {
		t.Fatalf("got %q, %v", got, err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestBasicAuthHeaders(t *testing.T) {
	h := BasicAuthHeaders("user", "pass")
	if got := h["Authorization"]; got != "Basic dXNlcjpwYXNz" {
		t.Fatalf("Authorization = %q", got)
	}
}
