package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kissan-connect-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), &models.Attachment{Filename: "crop photo.jpg", Data: []byte("jpeg")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, "-crop_photo.jpg"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestLocalStoreNameCollision(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		url, err := store.Save(context.Background(), &models.Attachment{Filename: "a.png", Data: []byte{byte(i)}})
		require.NoError(t, err)
		assert.False(t, seen[url], "duplicate url %s", url)
		seen[url] = true
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeName("../../etc/passwd"))
	assert.Equal(t, "evil.png", sanitizeName(`C:\tmp\evil.png`))
	assert.Equal(t, "file", sanitizeName(".."))
	assert.Equal(t, "file", sanitizeName(""))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("Field.JPG")
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ObjectKey("Field.JPG"))
}
