package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e1 = "https://earthquake.usgs.gov/earthquakes/eventpage/ak0001"
	e2 = "https://earthquake.usgs.gov/earthquakes/eventpage/ci0002"
)

// store is the method set both backends share.
type store interface {
	IsNewEvent(ctx context.Context, url string) (bool, error)
	Commit(ctx context.Context, url string, magnitude float64) error
	Rollback(ctx context.Context) error
	SaveCoordinates(ctx context.Context, c domain.Coordinates) error
	LastCoordinates(ctx context.Context) (domain.Coordinates, error)
	LastEvent(ctx context.Context) (string, error)
	LastMagnitude(ctx context.Context) (float64, error)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func backends() map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"file": func(t *testing.T) store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) store {
			_, client := setupTestRedis(t)
			return NewRedisStore(client, "quakewatch:")
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("empty state", func(t *testing.T) {
				s := open(t)
				isNew, err := s.IsNewEvent(ctx, e1)
				require.NoError(t, err)
				assert.True(t, isNew)

				last, err := s.LastEvent(ctx)
				require.NoError(t, err)
				assert.Empty(t, last)

				mag, err := s.LastMagnitude(ctx)
				require.NoError(t, err)
				assert.Equal(t, domain.UnknownMagnitude, mag)

				_, err = s.LastCoordinates(ctx)
				require.ErrorIs(t, err, ErrNoCoordinates)
			})

			t.Run("empty url is never new", func(t *testing.T) {
				s := open(t)
				isNew, err := s.IsNewEvent(ctx, "")
				require.NoError(t, err)
				assert.False(t, isNew)
			})

			t.Run("peek is idempotent", func(t *testing.T) {
				s := open(t)
				first, err := s.IsNewEvent(ctx, e1)
				require.NoError(t, err)
				second, err := s.IsNewEvent(ctx, e1)
				require.NoError(t, err)
				assert.Equal(t, first, second)
			})

			t.Run("commit then duplicate then new", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Commit(ctx, e1, 4.2))

				isNew, err := s.IsNewEvent(ctx, e1)
				require.NoError(t, err)
				assert.False(t, isNew)

				isNew, err = s.IsNewEvent(ctx, e2)
				require.NoError(t, err)
				assert.True(t, isNew)

				mag, err := s.LastMagnitude(ctx)
				require.NoError(t, err)
				assert.InDelta(t, 4.2, mag, 1e-9)
			})

			t.Run("rollback clears only the event", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Commit(ctx, e1, 5.5))
				require.NoError(t, s.Rollback(ctx))

				isNew, err := s.IsNewEvent(ctx, e1)
				require.NoError(t, err)
				assert.True(t, isNew)

				mag, err := s.LastMagnitude(ctx)
				require.NoError(t, err)
				assert.InDelta(t, 5.5, mag, 1e-9)
			})

			t.Run("coordinates round trip", func(t *testing.T) {
				s := open(t)
				c := domain.Coordinates{Lon: -117.8987, Lat: 38.1577}
				require.NoError(t, s.SaveCoordinates(ctx, c))

				got, err := s.LastCoordinates(ctx)
				require.NoError(t, err)
				assert.Equal(t, c, got)
			})
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveCoordinates(ctx, domain.Coordinates{Lon: 10.5, Lat: -3}))
	require.NoError(t, s.Commit(ctx, e1, 2.7))

	assertFile(t, filepath.Join(dir, "coordinates.txt"), "10.5,-3")
	assertFile(t, filepath.Join(dir, "last_event.txt"), e1)
	assertFile(t, filepath.Join(dir, "last_magnitude.txt"), "2.7")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestFileStore_ReadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_event.txt"), []byte(e1+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coordinates.txt"), []byte("-117.8987,38.1577\n"), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	isNew, err := s.IsNewEvent(context.Background(), e1)
	require.NoError(t, err)
	assert.False(t, isNew, "trailing newline is ignored")

	c, err := s.LastCoordinates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -117.8987, Lat: 38.1577}, c)
}

func TestFileStore_CorruptMagnitude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_magnitude.txt"), []byte("big"), 0o600))
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.LastMagnitude(context.Background())
	require.Error(t, err)
}

func TestRedisStore_Keys(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "qw:")
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, e1, 6.1))
	require.NoError(t, s.SaveCoordinates(ctx, domain.Coordinates{Lon: 1, Lat: 2}))

	v, err := mr.Get("qw:last_event")
	require.NoError(t, err)
	assert.Equal(t, e1, v)

	v, err = mr.Get("qw:last_magnitude")
	require.NoError(t, err)
	assert.Equal(t, "6.1", v)

	v, err = mr.Get("qw:coordinates")
	require.NoError(t, err)
	assert.Equal(t, "1,2", v)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "qw:")
	mr.Close()

	_, err := s.IsNewEvent(context.Background(), e1)
	require.Error(t, err)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Dial(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = Dial(context.Background(), addr, "", 0)
	require.Error(t, err)
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}
