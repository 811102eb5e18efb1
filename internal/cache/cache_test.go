package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/client"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	hash := HashImage([]byte("image"))

	_, err := s.FindByHash(ctx, hash, "remote", "", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := s.Save(ctx, hash, "remote", "", "<svg/>")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := s.FindByHash(ctx, hash, "remote", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", got.Document)
	assert.Equal(t, saved.ID, got.ID)

	_, err = s.FindByHash(ctx, hash, "ollama", "", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "h", "remote", "", "<svg/>")
	require.NoError(t, err)

	n, err := s.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Prune(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHashImage(t *testing.T) {
	assert.Equal(t, HashImage([]byte("a")), HashImage([]byte("a")))
	assert.NotEqual(t, HashImage([]byte("a")), HashImage([]byte("b")))
	assert.Len(t, HashImage(nil), 64)
}

func TestClientCachesResponses(t *testing.T) {
	s := openTestStore(t)
	calls := 0
	next := client.OutlineFunc(func(ctx context.Context, req client.Request) (string, error) {
		calls++
		return "<svg>" + string(req.Image) + "</svg>", nil
	})
	c := Wrap(s, next, "ollama", "llava", 0)
	ctx := context.Background()

	doc, err := c.Outline(ctx, client.Request{Image: []byte("a")})
	require.NoError(t, err)
	assert.Equal(t, "<svg>a</svg>", doc)

	doc, err = c.Outline(ctx, client.Request{Image: []byte("a")})
	require.NoError(t, err)
	assert.Equal(t, "<svg>a</svg>", doc)
	assert.Equal(t, 1, calls)

	_, err = c.Outline(ctx, client.Request{Image: []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClientDoesNotCacheErrors(t *testing.T) {
	s := openTestStore(t)
	fail := true
	next := client.OutlineFunc(func(ctx context.Context, req client.Request) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "<svg/>", nil
	})
	c := Wrap(s, next, "remote", "", 0)

	_, err := c.Outline(context.Background(), client.Request{Image: []byte("a")})
	assert.Error(t, err)

	fail = false
	doc, err := c.Outline(context.Background(), client.Request{Image: []byte("a")})
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", doc)
}
