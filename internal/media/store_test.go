package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedFilename(t *testing.T) {
	assert.True(t, AllowedFilename("visit.mp3"))
	assert.True(t, AllowedFilename("VISIT.WAV"))
	assert.True(t, AllowedFilename("recording.m4a"))
	assert.False(t, AllowedFilename("notes.pdf"))
	assert.False(t, AllowedFilename("archive.zip"))
	assert.False(t, AllowedFilename("noextension"))
}

func TestContentTypeFor(t *testing.T) {
	assert.NotEmpty(t, ContentTypeFor("a.mp3"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.unknown"))
}

func TestSaveStoresUnderFreshName(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("visit.mp3", strings.NewReader("audio bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, "visit.mp3", name)
	assert.True(t, strings.HasSuffix(name, ".mp3"))

	p, err := store.Path(name)
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(data))
}

func TestSaveNamesNeverCollide(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save("visit.mp3", strings.NewReader("one"))
	require.NoError(t, err)
	b, err := store.Save("visit.mp3", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPathRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	// a real file outside the upload dir must stay unreachable
	outside := filepath.Join(filepath.Dir(dir), "secret.mp3")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	_, err = store.Path("../secret.mp3")
	assert.Error(t, err)
	_, err = store.Path("/etc/passwd")
	assert.Error(t, err)
	_, err = store.Path(".hidden.mp3")
	assert.Error(t, err)
}

func TestPathUnknownFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Path("does-not-exist.mp3")
	assert.Error(t, err)
}
