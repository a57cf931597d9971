package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/storage"
)

func TestJobAssetsDownloadBundlesZip(t *testing.T) {
	app, jobs := newTestApp(nil)
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatal(err)
	}
	app.Store = store

	ctx := context.Background()
	_ = jobs.Create(ctx, &domain.GenerationJob{ID: "job-1", UserID: "user-1", Status: domain.JobStatusReady})
	key, err := store.Write(ctx, "user-1/job-1.png", "image/png", []byte("pngbytes"))
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Assets.Insert(ctx, &domain.Asset{
		ID:         "asset-1",
		JobID:      "job-1",
		UserID:     "user-1",
		StorageKey: key,
		MIME:       "image/png",
	}); err != nil {
		t.Fatal(err)
	}

	router := chi.NewRouter()
	router.Get("/v1/jobs/{job_id}/assets/download", app.JobAssetsDownload)

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1/assets/download", nil), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "job-1.png" {
		t.Fatalf("unexpected archive contents: %+v", zr.File)
	}
}
