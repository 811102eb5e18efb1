package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/client"
)

const outlineDoc = `<svg width="10" height="10"><path d="M 0,0 5,0 5,5 Z"><desc>cat</desc></path></svg>`

func TestOutlineUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, UploadPath, r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "png-bytes", string(data))
		assert.Equal(t, "cat.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		w.Write([]byte(outlineDoc))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", 0)
	doc, err := c.Outline(context.Background(), client.Request{
		Image:    []byte("png-bytes"),
		Filename: "cat.png",
		MimeType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, outlineDoc, doc)
}

func TestOutlineStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, 0).Outline(context.Background(), client.Request{Image: []byte("x")})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.True(t, statusErr.Temporary())
	assert.Contains(t, statusErr.Error(), "model overloaded")
}

func TestOutlineTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, 0).Outline(context.Background(), client.Request{Image: []byte("x")})
	assert.Error(t, err)
}
