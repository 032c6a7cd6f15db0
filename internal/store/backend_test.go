package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	s := NewFileStore(path)

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "missing file is not an error")

	require.NoError(t, s.Save(ctx, []byte(`{"a":1}`)))
	require.NoError(t, s.Save(ctx, []byte(`{"a":2}`)))

	data, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".snapshot-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files are cleaned up")
}

func TestFileStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))
	assert.ErrorIs(t, s.Save(ctx, []byte("x")), context.Canceled)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(mr.Addr(), "")
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.Save(ctx, []byte(`{"longTermMemory":[]}`)))
	data, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"longTermMemory":[]}`, string(data))

	raw, err := mr.Get(DefaultRedisKey)
	require.NoError(t, err)
	assert.Equal(t, `{"longTermMemory":[]}`, raw)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "custom")
	require.NoError(t, err)
	defer s.Close()
	mr.Close()

	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Config{Driver: DriverFile, Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, b)

	b, err = Open(Config{Driver: DriverSQLite, Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, b)
	require.NoError(t, b.Close())

	mr := miniredis.RunT(t)
	b, err = Open(Config{Driver: DriverRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, b)
	require.NoError(t, b.Close())

	_, err = Open(Config{Driver: "tape"})
	assert.Error(t, err)
	_, err = Open(Config{Driver: DriverRedis})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Driver: "tape"}.Validate())
	assert.Error(t, Config{Driver: DriverRedis}.Validate())
	assert.Error(t, Config{Driver: DriverFile, History: -1}.Validate())
}
