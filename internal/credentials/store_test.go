package credentials

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/odyssey-erp/qbportal/internal/credentials/migrations"
	"github.com/odyssey-erp/qbportal/internal/platform/db"
	_ "github.com/odyssey-erp/qbportal/testing"
)

// StoreSuite exercises the Store contract against one implementation.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) TestGetUnknownUser() {
	_, err := s.store.Get(s.ctx, "nobody")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestSaveCreatesAndPatches() {
	t := s.T()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	refreshExpires := expires.Add(100 * 24 * time.Hour)

	created, err := s.store.Save(s.ctx, "user-1", Patch{
		AccessToken:      ptr("access-1"),
		RefreshToken:     ptr("refresh-1"),
		RealmID:          ptr("9130"),
		ExpiresAt:        &expires,
		RefreshExpiresAt: &refreshExpires,
		Connected:        ptr(true),
	})
	require.NoError(t, err)
	require.Equal(t, "user-1", created.UserID)
	require.True(t, created.Connected)
	require.False(t, created.UpdatedAt.IsZero())

	patched, err := s.store.Save(s.ctx, "user-1", Patch{Connected: ptr(false)})
	require.NoError(t, err)
	require.False(t, patched.Connected)
	require.Equal(t, "access-1", patched.AccessToken, "tokens survive a disconnect")
	require.Equal(t, "refresh-1", patched.RefreshToken)

	got, err := s.store.Get(s.ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "9130", got.RealmID)
	require.True(t, got.ExpiresAt.Equal(expires))
	require.True(t, got.RefreshExpiresAt.Equal(refreshExpires))
	require.False(t, got.Connected)
}

func (s *StoreSuite) TestListRefreshExpiring() {
	t := s.T()
	now := time.Now().UTC()
	soon := now.Add(24 * time.Hour)
	later := now.Add(90 * 24 * time.Hour)

	_, err := s.store.Save(s.ctx, "soon", Patch{RefreshToken: ptr("r"), RefreshExpiresAt: &soon, Connected: ptr(true)})
	require.NoError(t, err)
	_, err = s.store.Save(s.ctx, "later", Patch{RefreshToken: ptr("r"), RefreshExpiresAt: &later, Connected: ptr(true)})
	require.NoError(t, err)
	_, err = s.store.Save(s.ctx, "gone", Patch{RefreshToken: ptr("r"), RefreshExpiresAt: &soon, Connected: ptr(false)})
	require.NoError(t, err)

	list, err := s.store.ListRefreshExpiring(s.ctx, now.Add(10*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "soon", list[0].UserID)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("QBPORTAL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("QBPORTAL_TEST_PG_DSN not set")
	}
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		ctx := context.Background()
		pool, err := db.New(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		require.NoError(t, db.Migrate(ctx, pool, migrations.FS))
		_, err = pool.Exec(ctx, `TRUNCATE qbo_credentials`)
		require.NoError(t, err)

		key := make([]byte, 32)
		for i := range key {
			key[i] = byte(i)
		}
		cipher, err := NewCipher(key)
		require.NoError(t, err)
		return NewPostgresStore(pool, cipher)
	}})
}

func ptr[T any](v T) *T { return &v }
