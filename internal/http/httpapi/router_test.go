package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
)

func TestStaticServesFileStoreAssets(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "user-1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user-1", "job-1.png"), []byte("pngbytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	app := &handlers.App{Log: zerolog.Nop()}
	router := NewRouter(app, Options{JWTSecret: "secret", StaticDir: dir})

	req := httptest.NewRequest(http.MethodGet, "/static/user-1/job-1.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "pngbytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestStaticDisabledWithoutDir(t *testing.T) {
	app := &handlers.App{Log: zerolog.Nop()}
	router := NewRouter(app, Options{JWTSecret: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/static/user-1/job-1.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
