package blob

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
)

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(config.LocalStorageConfig{
		Dir:     t.TempDir(),
		BaseURL: "/media",
	})
	require.NoError(t, err)
	return s
}

func TestLocal_PutGetRoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	url, err := s.Put(ctx, "audio/chunks/story_x_page_1.mp3", []byte("mp3data"))
	require.NoError(t, err)
	assert.Equal(t, "/media/audio/chunks/story_x_page_1.mp3", url)

	data, err := s.Get(ctx, "audio/chunks/story_x_page_1.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3data"), data)
}

func TestLocal_OverwriteLastWriteWins(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "audio/a.mp3", []byte("one"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "audio/a.mp3", []byte("two"))
	require.NoError(t, err)

	data, err := s.Get(ctx, "audio/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func TestLocal_ExistsAndDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "audio/missing.mp3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Put(ctx, "audio/here.mp3", []byte("x"))
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "audio/here.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "audio/here.mp3"))
	// Deleting a missing object is tolerated.
	require.NoError(t, s.Delete(ctx, "audio/here.mp3"))

	ok, err = s.Exists(ctx, "audio/here.mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_ListByPrefix(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	pid := uuid.New()

	for i := 1; i <= 3; i++ {
		_, err := s.Put(ctx, ChunkPath(pid, i), []byte("chunk"))
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, CombinedAudioPath(pid), []byte("full"))
	require.NoError(t, err)

	chunks, err := s.List(ctx, ChunkPrefix(pid))
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	all, err := s.List(ctx, "audio/")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	s := newLocal(t)

	_, err := s.Put(context.Background(), "../escape.mp3", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, fault.Store, fault.KindOf(err))
}

func TestArtifactPaths(t *testing.T) {
	pid := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "audio/chunks/story_11111111-2222-3333-4444-555555555555_page_2.mp3", ChunkPath(pid, 2))
	assert.Equal(t, "audio/story_11111111-2222-3333-4444-555555555555_full.mp3", CombinedAudioPath(pid))
	assert.Contains(t, ChunkPath(pid, 7), ChunkPrefix(pid))
}
