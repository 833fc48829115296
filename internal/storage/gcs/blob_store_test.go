package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestBlobStore(t *testing.T, cfg Config, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg, nil)
	require.NoError(t, err)
	return store
}

func TestWriteBlobUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	bodies := make(chan string, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/jobs-bucket/o")
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		bodies <- string(body)
		fmt.Fprintln(w, `{"name":"usrse/7_text.txt","bucket":"jobs-bucket"}`)
	})

	store := newTestBlobStore(t, Config{Bucket: "jobs-bucket", Prefix: "/usrse/"}, handler)
	require.NoError(t, store.WriteBlob(context.Background(), "7_text.txt", []byte("Apply now")))

	body := <-bodies
	require.Contains(t, body, "Apply now")
	require.Contains(t, body, "usrse/7_text.txt")
}

func TestWriteBlobServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestBlobStore(t, Config{Bucket: "jobs-bucket"}, handler)
	err := store.WriteBlob(context.Background(), "7_source_code.txt", []byte("<html/>"))
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store := &BlobStore{}
	require.Equal(t, "1_text.txt", store.ObjectName("1_text.txt"))
	store.prefix = "boards/usrse"
	require.Equal(t, "boards/usrse/1_text.txt", store.ObjectName("1_text.txt"))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"}, nil)
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = New(client, Config{}, nil)
	require.Error(t, err)
}
