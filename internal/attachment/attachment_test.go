package attachment

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denuncia/backend/internal/config"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2026/05/evidence.pdf", want: "2026/05/evidence.pdf"},
		{in: "./a//b.png", want: "a/b.png"},
		{in: `dir\file.jpg`, want: "dir/file.jpg"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "../secret", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSStore_Remove(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2026"), 0o755))
	file := filepath.Join(root, "2026", "evidence.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o600))

	store, err := NewFSStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), "2026/evidence.pdf"))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	// second removal is a no-op
	require.NoError(t, store.Remove(context.Background(), "2026/evidence.pdf"))
	assert.ErrorIs(t, store.Remove(context.Background(), "../outside"), ErrInvalidKey)
}

func TestFSStore_RemoveHonoursContext(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Remove(ctx, "a.txt"), context.Canceled)
}

func TestNewFSStore_RequiresDir(t *testing.T) {
	_, err := NewFSStore(" ")
	assert.Error(t, err)
}

type recordedRequest struct {
	method string
	path   string
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeS3) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: req.Method, path: req.URL.Path})
	f.mu.Unlock()
	return &http.Response{
		StatusCode: f.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func newFakeS3Store(t *testing.T, fake *fakeS3, prefix string) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:      "evidence",
		Endpoint:    "https://s3.test.local",
		PathStyle:   true,
		KeyPrefix:   prefix,
		Credentials: credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
		HTTPClient:  fake,
	})
	require.NoError(t, err)
	return store
}

func TestS3Store_Remove(t *testing.T) {
	fake := &fakeS3{status: http.StatusNoContent}
	store := newFakeS3Store(t, fake, "complaints")

	require.NoError(t, store.Remove(context.Background(), "2026/evidence.pdf"))

	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodDelete, fake.requests[0].method)
	assert.Equal(t, "/evidence/complaints/2026/evidence.pdf", fake.requests[0].path)
}

func TestS3Store_RemoveFailure(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	store := newFakeS3Store(t, fake, "")

	err := store.Remove(context.Background(), "evidence.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete s3 object evidence.pdf")
}

func TestS3Store_RejectsInvalidKey(t *testing.T) {
	fake := &fakeS3{status: http.StatusNoContent}
	store := newFakeS3Store(t, fake, "")

	assert.ErrorIs(t, store.Remove(context.Background(), "../x"), ErrInvalidKey)
	assert.Empty(t, fake.requests)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := Open(context.Background(), config.Attachments{Driver: "fs", Dir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, r)

	_, err = Open(context.Background(), config.Attachments{Driver: "s3"}, logger)
	assert.Error(t, err)

	_, err = Open(context.Background(), config.Attachments{Driver: "ftp"}, logger)
	assert.Error(t, err)
}
