package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examgen/internal/config"
)

type received struct {
	mu          sync.Mutex
	method      string
	path        string
	body        []byte
	contentType string
}

func fakeS3(t *testing.T, got *received) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.method = r.Method
		got.path = r.URL.Path
		got.body = body
		got.contentType = r.Header.Get("Content-Type")
		got.mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDisabled(t *testing.T) {
	c, err := New(context.Background(), config.Archive{})
	require.NoError(t, err)
	assert.Nil(t, c)

	loc, err := c.Upload(context.Background(), "run", "x.zip", "application/zip", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, loc)
}

func TestUpload(t *testing.T) {
	var got received
	srv := fakeS3(t, &got)

	c, err := New(context.Background(), config.Archive{
		Bucket:    "bundles",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "examgen",
		PathStyle: true,
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	loc, err := c.Upload(context.Background(), "run-1", "BA_questions.zip", "application/zip", []byte("zipdata"))
	require.NoError(t, err)
	assert.Equal(t, "s3://bundles/examgen/run-1/BA_questions.zip", loc)

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/bundles/examgen/run-1/BA_questions.zip", got.path)
	assert.Equal(t, "zipdata", string(got.body))
	assert.Equal(t, "application/zip", got.contentType)
}

func TestUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), config.Archive{
		Bucket: "bundles", Endpoint: srv.URL, Region: "us-east-1",
		AccessKey: "key", SecretKey: "secret", PathStyle: true,
	})
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), "run-1", "a.zip", "application/zip", []byte("x"))
	assert.ErrorContains(t, err, "upload run-1/a.zip")
}
