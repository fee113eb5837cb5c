package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/install"
	"github.com/kiyonya/miocore/internal/loader"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "mioinstall v"+version) {
		t.Errorf("output = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "bogus")
	if code == ExitSuccess {
		t.Fatal("expected failure")
	}
	if !strings.Contains(errOut, "unknown command") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestInstallRejectsBadLoader(t *testing.T) {
	code, _, errOut := runCLI(t, "install", "1.20.1", "--loader", "rift:1.0")
	if code != ExitInvalidArgs {
		t.Fatalf("exit code = %d, want %d (%s)", code, ExitInvalidArgs, errOut)
	}
}

func TestInstallRejectsBadSide(t *testing.T) {
	t.Setenv("MIO_ROOT", t.TempDir())
	code, _, _ := runCLI(t, "install", "1.20.1", "--side", "both")
	if code != ExitInvalidArgs {
		t.Fatalf("exit code = %d, want %d", code, ExitInvalidArgs)
	}
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	frag := filepath.Join(dir, "fabric.json")
	out := filepath.Join(dir, "out", "merged.json")
	os.WriteFile(base, []byte(`{"id": "1.20.1", "libraries": [{"name": "a:b:1"}], "minecraftArguments": "--a 1 --b"}`), 0o644)
	os.WriteFile(frag, []byte(`{"id": "fabric", "libraries": [{"name": "c:d:2"}], "minecraftArguments": "--a 2 --d 3"}`), 0o644)

	code, _, errOut := runCLI(t, "merge", base, frag, "-o", out)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d: %s", code, errOut)
	}
	merged, err := descriptor.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	libs, _ := merged.Libraries()
	if merged.ID() != "fabric" || len(libs) != 2 || libs[0].Name != "a:b:1" {
		t.Errorf("merged = %v", merged)
	}
	if got := merged.StringField(descriptor.KeyMinecraftArguments); got != "--a 2 --b --d 3" {
		t.Errorf("minecraftArguments = %q", got)
	}
}

func TestMergeRequiresOutput(t *testing.T) {
	code, _, _ := runCLI(t, "merge", "a.json", "b.json")
	if code != ExitInvalidArgs {
		t.Fatalf("exit code = %d, want %d", code, ExitInvalidArgs)
	}
}

func TestFetchCommand(t *testing.T) {
	data := []byte("library bytes")
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lib.jar" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	t.Setenv("MIO_ROOT", t.TempDir())
	t.Setenv("MIO_RETRY_DELAY", "1ms")
	t.Setenv("MIO_CACHE_BUCKET", "mem://")
	dest := filepath.Join(t.TempDir(), "lib.jar")

	code, out, errOut := runCLI(t, "fetch", srv.URL+"/lib.jar", dest, "--hash", digest)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != dest {
		t.Errorf("stdout = %q", out)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, data) {
		t.Errorf("content = %q", got)
	}

	code, _, _ = runCLI(t, "fetch", srv.URL+"/lib.jar", filepath.Join(t.TempDir(), "bad.jar"), "--hash", strings.Repeat("0", 64))
	if code != ExitIntegrityError {
		t.Errorf("mismatched hash: exit code = %d, want %d", code, ExitIntegrityError)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"aborted", fmt.Errorf("fetch assets: %w", downloader.ErrAborted), ExitAborted},
		{"usage", usageError{errors.New("bad flag")}, ExitInvalidArgs},
		{"storage", storageError{errors.New("bucket")}, ExitStorageError},
		{"integrity", &downloader.BatchError{Errs: []error{&downloader.IntegrityError{Dest: "x"}}}, ExitIntegrityError},
		{"network", &downloader.BatchError{Errs: []error{&downloader.NetworkError{Dest: "x", Err: errors.New("eof")}}}, ExitNetworkError},
		{"version", fmt.Errorf("%w: 9.9", install.ErrVersionNotFound), ExitNetworkError},
		{"process", fmt.Errorf("install forge: %w", &loader.ProcessError{Processor: "p", ExitCode: 1, Err: errors.New("exit")}), ExitLoaderError},
		{"profile", &loader.UnresolvedProfileError{Loader: "forge", Field: "{X}"}, ExitLoaderError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
