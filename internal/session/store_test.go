package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpa/internal/locale"
)

// testStore runs the behavior every backend shares.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, saved.Empty(), "fresh store should be empty")

	require.NoError(t, store.SaveName(ctx, "Maria"))
	require.NoError(t, store.SavePreferredLanguage(ctx, locale.Spanish))

	saved, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Saved{UserName: "Maria", Language: locale.Spanish}, saved)

	require.NoError(t, store.SaveName(ctx, "Giulia"))
	saved, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Giulia", saved.UserName)

	require.NoError(t, store.Clear(ctx))
	saved, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved.UserName)
	assert.Equal(t, locale.Spanish, saved.Language, "clear keeps the language preference")

	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(filepath.Join(t.TempDir(), "profile", "session.json")))
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("SHERPA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHERPA_TEST_REDIS_URL not set")
	}

	store, err := NewRedisStore(context.Background(), url, "sherpa-test:"+uuid.NewString()+":")
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFileStore(path).SaveName(ctx, "Maria"))

	saved, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Maria", saved.UserName)
}

func TestFileStoreRecoversFromCorruption(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store := NewFileStore(path)
	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, saved.Empty())

	_, err = os.Stat(path + ".backup")
	assert.NoError(t, err, "corrupted file should be kept as a backup")
}

func TestUnsupportedStoredLanguageIsIgnored(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chat_user_name":"Maria","user_preferred_lang":"de"}`), 0600))

	saved, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Saved{UserName: "Maria"}, saved)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, closer, err := Open(ctx, OpenOptions{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	assert.NoError(t, closer.Close())

	store, closer, err = Open(ctx, OpenOptions{Backend: BackendSQLite, Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	assert.NoError(t, closer.Close())

	store, _, err = Open(ctx, OpenOptions{Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, _, err = Open(ctx, OpenOptions{Backend: "cookies"})
	assert.Error(t, err)

	_, _, err = Open(ctx, OpenOptions{Backend: BackendFile})
	assert.Error(t, err)
}
