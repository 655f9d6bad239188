package media

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// fileHeader 构造一个经过 multipart 解析的 FileHeader
func fileHeader(t *testing.T, filename, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["media"][0]
}

func TestStorageSave(t *testing.T) {
	s, err := NewStorage(t.TempDir(), 1024)
	require.NoError(t, err)

	up, err := s.Save(fileHeader(t, "Cat.PNG", "image/png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.MIMEType)
	assert.Equal(t, ".png", filepath.Ext(up.Name))

	data, err := os.ReadFile(filepath.Join(s.Dir(), up.Name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, s.Remove(up.Name))
	require.NoError(t, s.Remove(up.Name))
	_, err = os.Stat(filepath.Join(s.Dir(), up.Name))
	assert.True(t, os.IsNotExist(err))
}

func TestStorageSniffsOctetStream(t *testing.T) {
	s, err := NewStorage(t.TempDir(), 1024)
	require.NoError(t, err)

	up, err := s.Save(fileHeader(t, "blob", "application/octet-stream", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.MIMEType)
	assert.Equal(t, ".png", filepath.Ext(up.Name))
}

func TestStorageRejects(t *testing.T) {
	s, err := NewStorage(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = s.Save(fileHeader(t, "a.png", "image/png", pngHeader))
	assert.ErrorIs(t, err, ErrTooLarge)

	s, err = NewStorage(t.TempDir(), 1024)
	require.NoError(t, err)
	_, err = s.Save(fileHeader(t, "a.txt", "text/plain", []byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(fileHeader(t, "a.bin", "", []byte("plain text body")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	_, err = s.Save(fileHeader(t, "x.svg", "image/svg+xml", svg))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = s.Save(fileHeader(t, "x.svg", "image/SVG+XML; charset=utf-8", svg))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = s.Save(fileHeader(t, "x", "application/octet-stream", svg))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorageRemoveRejectsPaths(t *testing.T) {
	s, err := NewStorage(t.TempDir(), 1024)
	require.NoError(t, err)
	assert.Error(t, s.Remove("../etc/passwd"))
	assert.Error(t, s.Remove(""))
}
