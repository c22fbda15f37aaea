package fileapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":             "f1",
				"name":           "report.pdf",
				"size":           2048,
				"downloads_left": 3,
				"expires_at":     time.Now().Add(time.Hour).Format(time.RFC3339),
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	files, err := client.List(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].ID)
	assert.Equal(t, "report.pdf", files[0].Name)
	assert.Equal(t, int64(2048), files[0].Size)
	assert.Equal(t, 3, files[0].DownloadsLeft)
}

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "file content", string(content))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "f2",
			"name": "notes.txt",
			"size": len(content),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	file, err := client.Upload(context.Background(), "notes.txt", strings.NewReader("file content"))
	require.NoError(t, err)

	assert.Equal(t, "f2", file.ID)
	assert.Equal(t, "notes.txt", file.Name)
}

func TestDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/files/f3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	assert.NoError(t, client.Delete(context.Background(), "f3"))
}

func TestTypedErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"gone", http.StatusGone, ErrGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client())
			err := client.Delete(context.Background(), "missing")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnmappedStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}
