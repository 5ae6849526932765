package transport

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormDataAccessors(t *testing.T) {
	form := NewFormData().
		Append("a", "1").
		AppendFile("f", "x.bin", "", []byte{1, 2}).
		Append("a", "2")

	assert.Equal(t, 3, form.Len())
	assert.Equal(t, []string{"a", "f", "a"}, form.Names())

	v, ok := form.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = form.Get("f")
	assert.False(t, ok, "file parts have no plain value")
}

func TestFormDataEncode(t *testing.T) {
	form := NewFormData().
		Append("title", "q\"uote").
		AppendFile("upload", `we"ird.txt`, "text/plain", []byte("hello")).
		AppendFile("raw", "raw.bin", "", []byte{0xff})

	body, contentType, err := form.Encode()
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	part, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "title", part.FormName())
	data, _ := io.ReadAll(part)
	assert.Equal(t, "q\"uote", string(data))

	part, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "upload", part.FormName())
	assert.Equal(t, `we"ird.txt`, part.FileName())
	assert.Equal(t, "text/plain", part.Header.Get("Content-Type"))
	data, _ = io.ReadAll(part)
	assert.Equal(t, "hello", string(data))

	part, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", part.Header.Get("Content-Type"))

	_, err = r.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFormDataEach(t *testing.T) {
	form := NewFormData().Append("a", "1").AppendFile("f", "f.txt", "text/plain", []byte("x"))

	var names, files []string
	form.each(func(name, _, filename, _ string, r io.Reader) {
		names = append(names, name)
		if r != nil {
			files = append(files, filename)
		}
	})
	assert.Equal(t, []string{"a", "f"}, names)
	assert.Equal(t, []string{"f.txt"}, files)
}
