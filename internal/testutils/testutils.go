//go:build integration

// Package testutils provides shared infrastructure for integration tests.
package testutils

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

// Artifact is a file served by an Upstream.
type Artifact struct {
	Path string
	Data []byte
}

// SHA1 returns the hex SHA-1 of the artifact.
func (a Artifact) SHA1() string {
	sum := sha1.Sum(a.Data)
	return hex.EncodeToString(sum[:])
}

// GenerateArtifact returns an artifact of the given size. Small artifacts
// use a deterministic pattern; larger ones are random.
func GenerateArtifact(t *testing.T, path string, size int) Artifact {
	t.Helper()
	data := make([]byte, size)
	if size <= 1024*1024 {
		for i := range data {
			data[i] = byte(i % 251)
		}
	} else if _, err := rand.Read(data); err != nil {
		t.Fatalf("generate random data: %v", err)
	}
	return Artifact{Path: path, Data: data}
}

// Upstream is an HTTP server standing in for a file host. It counts the
// requests it serves so tests can assert on network use.
type Upstream struct {
	*httptest.Server

	mu    sync.RWMutex
	files map[string][]byte
	hits  atomic.Int64
}

// StartUpstream serves the given artifacts until the test ends.
func StartUpstream(t *testing.T, artifacts ...Artifact) *Upstream {
	t.Helper()
	u := &Upstream{files: make(map[string][]byte)}
	for _, a := range artifacts {
		u.files[a.Path] = a.Data
	}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.RLock()
		data, ok := u.files[r.URL.Path]
		u.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		u.hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	t.Cleanup(u.Server.Close)
	return u
}

// URL returns the absolute URL of an artifact path.
func (u *Upstream) URL(path string) string {
	return u.Server.URL + path
}

// Hits returns the number of successful file responses.
func (u *Upstream) Hits() int64 {
	return u.hits.Load()
}

// Remove stops serving path.
func (u *Upstream) Remove(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.files, path)
}

// MinioEnv contains connection information for a MinIO test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the MinIO container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket on the MinIO environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts MinIO with a pre-created bucket and sets the
// AWS credential variables gocloud's s3blob driver reads.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	networkName := fmt.Sprintf("mio-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{Name: networkName},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "minio/minio:latest",
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"minio"}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     accessKey,
				"MINIO_ROOT_PASSWORD": secretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucket(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}
	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: container,
		BucketURL: fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1", bucketName, endpoint),
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucket runs a one-shot minio/mc container that creates the bucket.
func createBucket(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "minio/mc:latest",
			Networks:   []string{networkName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd: []string{fmt.Sprintf(
				"/usr/bin/mc alias set mio http://minio:9000 %s %s && /usr/bin/mc mb mio/%s; exit 0",
				accessKey, secretKey, bucketName,
			)},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mc.Terminate(ctx)
}

// CompareReader reads r to the end and fails the test unless it yields
// exactly expected.
func CompareReader(t *testing.T, r io.Reader, expected []byte) {
	t.Helper()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, expected) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(expected))
	}
}
