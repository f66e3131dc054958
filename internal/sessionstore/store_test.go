package sessionstore

import (
	"testing"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	testlog.Start(t)

	s := openMem(t)
	id := domain.IDFromName(domain.ID{}, "counter")
	mem := domain.NewMemory()
	mem.Memorize(id, bits.FromBytes([]byte{0x01, 0x02}))

	require.NoError(t, s.Save("alice", mem))
	got, err := s.Load("alice")
	require.NoError(t, err)
	v, ok := got.Value(id)
	require.True(t, ok)
	assert.Equal(t, "0102", v.Hex())
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	testlog.Start(t)

	s := openMem(t)
	mem, err := s.Load("nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestSessionsAndDelete(t *testing.T) {
	testlog.Start(t)

	s := openMem(t)
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, s.Save(name, domain.NewMemory()))
	}
	names, err := s.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, s.Delete("b"))
	require.NoError(t, s.Delete("never-saved"))
	names, err = s.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestEmptySessionNameIsRejected(t *testing.T) {
	testlog.Start(t)

	s := openMem(t)
	assert.ErrorIs(t, s.Save(" ", domain.NewMemory()), ErrEmptySession)
	_, err := s.Load("")
	assert.ErrorIs(t, err, ErrEmptySession)
	assert.ErrorIs(t, s.Save("x", nil), domain.ErrInvalidPath)
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	id := domain.NewID()
	s, err := Open(dir)
	require.NoError(t, err)
	mem := domain.NewMemory()
	mem.Memorize(id, bits.FromBytes([]byte("persist")))
	require.NoError(t, s.Save("default", mem))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load("default")
	require.NoError(t, err)
	v, _ := got.Value(id)
	assert.Equal(t, []byte("persist"), v.Bytes())
}
