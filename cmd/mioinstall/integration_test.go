//go:build integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiyonya/miocore/internal/testutils"
)

func TestFetchThroughMinioCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minio := testutils.StartMinioContainer(t, ctx, "mio-cli-cache")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	lib := testutils.GenerateArtifact(t, "/maven/a/b/1/b-1.jar", 512*1024)
	upstream := testutils.StartUpstream(t, lib)

	t.Setenv("MIO_ROOT", t.TempDir())
	t.Setenv("MIO_CACHE_BUCKET", minio.BucketURL)
	t.Setenv("MIO_RETRY_DELAY", "1ms")

	first := filepath.Join(t.TempDir(), "b-1.jar")
	if code, _, errOut := runCLI(t, "fetch", upstream.URL(lib.Path), first, "--hash", lib.SHA1()); code != ExitSuccess {
		t.Fatalf("first fetch: exit %d: %s", code, errOut)
	}
	if upstream.Hits() != 1 {
		t.Fatalf("upstream hits = %d, want 1", upstream.Hits())
	}

	// A second instance restores from the cache even with the upstream gone.
	upstream.Remove(lib.Path)
	second := filepath.Join(t.TempDir(), "b-1.jar")
	if code, _, errOut := runCLI(t, "fetch", upstream.URL(lib.Path), second, "--hash", lib.SHA1()); code != ExitSuccess {
		t.Fatalf("cached fetch: exit %d: %s", code, errOut)
	}
	f, err := os.Open(second)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	testutils.CompareReader(t, f, lib.Data)
}
