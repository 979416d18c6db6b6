//go:build integration

// Package testutils provides shared infrastructure for integration tests:
// a bundle-serving HTTP server and a Minio container for deployment tests.
package testutils

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

// TestFile is a file served by StartTestHTTPServer.
type TestFile struct {
	Name string
	Data []byte
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// BuildBundle returns a zip archive holding an empty shapefile set for every
// layer, the way a regional extract is published.
func BuildBundle(t *testing.T, layers []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, layer := range layers {
		for _, ext := range []string{".shp", ".shx", ".dbf", ".prj", ".cpg"} {
			w, err := zw.Create(layer + ext)
			if err != nil {
				t.Fatalf("create bundle entry: %v", err)
			}
			fmt.Fprintf(w, "%s%s", layer, ext)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close bundle: %v", err)
	}
	return buf.Bytes()
}

// StartTestHTTPServer starts an HTTP server that serves files by name and
// counts the GET requests it receives.
func StartTestHTTPServer(t *testing.T, files []TestFile) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	fileMap := make(map[string][]byte)
	for _, f := range files {
		fileMap["/"+f.Name] = f.Data
	}

	var gets atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, r.URL.Path))
		if r.Method == http.MethodHead {
			return
		}
		gets.Add(1)
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server, &gets
}

// MinioEnv describes a running Minio container.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container == nil {
		return nil
	}
	return e.Container.Terminate(ctx)
}

// OpenBucket opens the test bucket through gocloud. The caller must link in
// gocloud.dev/blob/s3blob.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

const (
	minioUser     = "mapmaker"
	minioPassword = "mapmaker-secret"
)

// StartMinioContainer starts Minio with bucketName already present and points
// the AWS credential variables at it for the rest of the test.
//
// Minio serves every top-level directory of its data dir as a bucket, so the
// bucket is created with mkdir before the server starts.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd:        []string{fmt.Sprintf("mkdir -p /data/%s && exec minio server /data", bucketName)},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000").WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("minio endpoint: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	return &MinioEnv{
		Container: container,
		Endpoint:  endpoint,
		BucketURL: fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
			bucketName, endpoint),
	}
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	chunkSize := 1024 * 1024 // 1MB
	buf := make([]byte, chunkSize)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
