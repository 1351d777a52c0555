package outputs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithFiles(t *testing.T, names ...string) *Store {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	}
	return NewStore(dir)
}

func TestResolve_RejectsTraversal(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, bad := range []string{"", "../etc/passwd", "a/b.mp4", "..", "foo/../bar.mp4"} {
		_, err := s.Resolve(bad)
		assert.Error(t, err, "name %q must be rejected", bad)
	}

	path, err := s.Resolve("video.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "video.mp4"), path)
}

func TestStat_MissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, err := s.Stat("gone.mp4")
	assert.ErrorContains(t, err, "not found")
}

func TestList(t *testing.T) {
	s := newStoreWithFiles(t, "a.mp4", "b.mp3", "c.srt")

	files, summary, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.VideoFiles)
	assert.Equal(t, 1, summary.AudioFiles)
	assert.Equal(t, 1, summary.OtherFiles)

	for _, f := range files {
		assert.Equal(t, "/api/download/"+f.Filename, f.DownloadURL)
		assert.Equal(t, int64(4), f.SizeBytes)
	}
}

func TestList_SkipsDirectories(t *testing.T) {
	s := newStoreWithFiles(t, "a.mp4")
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub"), 0o755))

	files, summary, err := s.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 1, summary.TotalFiles)
}

func TestDelete(t *testing.T) {
	s := newStoreWithFiles(t, "a.mp4")

	require.NoError(t, s.Delete("a.mp4"))
	_, err := os.Stat(filepath.Join(s.Dir(), "a.mp4"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Delete("a.mp4"), "second delete reports not found")
	assert.Error(t, s.Delete("../a.mp4"))
}

func TestCleanup_RemovesOnlyOldFiles(t *testing.T) {
	s := newStoreWithFiles(t, "old.mp4", "fresh.mp4")

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), "old.mp4"), past, past))

	summary, err := s.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesDeleted)

	_, err = os.Stat(filepath.Join(s.Dir(), "old.mp4"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(s.Dir(), "fresh.mp4"))
	assert.NoError(t, err)
}

func TestCleanup_ZeroAgeRemovesEverything(t *testing.T) {
	s := newStoreWithFiles(t, "old.mp4", "fresh.mp4")

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), "old.mp4"), past, past))

	summary, err := s.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FilesDeleted)

	_, err = os.Stat(filepath.Join(s.Dir(), "fresh.mp4"))
	assert.True(t, os.IsNotExist(err), "a zero age must remove files created this instant")
}

func TestCleanup_EmptyDir(t *testing.T) {
	s := NewStore(t.TempDir())
	summary, err := s.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesDeleted)
	assert.Equal(t, 0.0, summary.TotalSizeDeletedMB)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentTypeFor("a.mp4"))
	assert.Equal(t, "video/mp4", ContentTypeFor("A.MP4"))
	assert.Equal(t, "audio/mpeg", ContentTypeFor("voice.mp3"))
	assert.Equal(t, "application/x-subrip", ContentTypeFor("subs.srt"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("mystery.bin"))
}
