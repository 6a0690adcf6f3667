package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("http://cdn.local/park/")

	url, err := s.Put(ctx, "qrcodes/BOOK-1.png", []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/park/qrcodes/BOOK-1.png", url)

	obj, err := s.Get("qrcodes/BOOK-1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, s.Remove(ctx, "qrcodes/BOOK-1.png"))
	require.NoError(t, s.Remove(ctx, "qrcodes/BOOK-1.png"))
	_, err = s.Get("qrcodes/BOOK-1.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://h/b/k", joinURL("http://h/b//", "/k"))
	assert.Equal(t, "http://h/b/a/k", joinURL("http://h/b", "a/k"))
}
