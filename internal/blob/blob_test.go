package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPathShape(t *testing.T) {
	p := DocumentPath("proj-1", "invoice.pdf")
	assert.True(t, strings.HasPrefix(p, "documents/proj-1/"))
	assert.True(t, strings.HasSuffix(p, "-invoice.pdf"))
	assert.NotEqual(t, p, DocumentPath("proj-1", "invoice.pdf"))
}

func TestDocumentPathCleansSegments(t *testing.T) {
	p := DocumentPath("a/b", "../../etc/passwd")
	parts := strings.Split(p, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "a_b", parts[1])
	assert.True(t, strings.HasSuffix(parts[2], "-.._.._etc_passwd"))
}

func TestDiskUploadThenDelete(t *testing.T) {
	fs := memfs.New()
	d := NewDiskFS(fs, "mem://blobs")
	ctx := context.Background()

	url, err := d.Upload(ctx, "documents/p1/x-note.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "mem://blobs/documents/p1/x-note.txt", url)
	assert.True(t, d.Exists("documents/p1/x-note.txt"))

	f, err := fs.Open("documents/p1/x-note.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, d.Delete(ctx, "documents/p1/x-note.txt"))
	assert.False(t, d.Exists("documents/p1/x-note.txt"))
}

func TestDiskDeleteMissingFails(t *testing.T) {
	d := NewDiskFS(memfs.New(), "mem://blobs")
	err := d.Delete(context.Background(), "documents/p1/missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewDiskOnHostFilesystem(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir)
	require.NoError(t, err)

	_, err = d.Upload(context.Background(), "documents/p2/a.bin", "application/octet-stream", []byte{1, 2, 3})
	require.NoError(t, err)
	_, err = os.Stat(dir + "/documents/p2/a.bin")
	require.NoError(t, err)
	require.NoError(t, d.Delete(context.Background(), "documents/p2/a.bin"))
	_, err = os.Stat(dir + "/documents/p2/a.bin")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMinIOIntegration(t *testing.T) {
	endpoint := strings.TrimSpace(os.Getenv("PM_TEST_MINIO_ENDPOINT"))
	if endpoint == "" {
		t.Skip("PM_TEST_MINIO_ENDPOINT is not set")
	}
	ctx := context.Background()
	m, err := NewMinIO(MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PM_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("PM_TEST_MINIO_SECRET_KEY"),
		Bucket:    "pm-test",
	})
	require.NoError(t, err)

	p := DocumentPath("it", "blob.txt")
	_, err = m.Upload(ctx, p, "text/plain", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, p))
	assert.True(t, errors.Is(m.Delete(ctx, p), ErrNotFound))
}

func TestNewMinIODoesNotContactServer(t *testing.T) {
	m, err := NewMinIO(MinIOConfig{Endpoint: "127.0.0.1:1", AccessKey: "k", SecretKey: "s", Bucket: "pm"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = m.Upload(ctx, DocumentPath("p1", "a.txt"), "text/plain", []byte("x"))
	assert.Error(t, err)
	assert.False(t, m.bucketReady.Load())
}
