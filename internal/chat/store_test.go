package chat_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/store/memory"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDBAt(t, filepath.Join(t.TempDir(), "chat.db"))
}

func openTestDBAt(t *testing.T, path string) *gorm.DB {
	t.Helper()
	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(&chat.Message{}, &chat.Linkage{}), "automigrate")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one writer at a time, like the locking sqlite does anyway
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// backends returns one fresh instance of every Store implementation.
func backends(t *testing.T) map[string]chat.Store {
	return map[string]chat.Store{
		"memory": memory.NewStore(),
		"gorm":   chat.NewRepo(openTestDB(t)),
	}
}

func TestStore_AppendListRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			uid := uint64(5)

			empty, err := store.ListBySession(ctx, "s1")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			first, err := store.Append(ctx, "s1", chat.RoleUser, "hi there", &uid)
			require.NoError(t, err)
			_, err = store.Append(ctx, "s2", chat.RoleUser, "other session", &uid)
			require.NoError(t, err)
			second, err := store.Append(ctx, "s1", chat.RoleAssistant, "hello\nwith newline", nil)
			require.NoError(t, err)

			assert.Greater(t, second.ID, first.ID)
			assert.False(t, first.CreatedAt.IsZero())

			msgs, err := store.ListBySession(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, first.ID, msgs[0].ID)
			assert.Equal(t, chat.RoleUser, msgs[0].Role)
			assert.Equal(t, "hi there", msgs[0].Content)
			require.NotNil(t, msgs[0].UserID)
			assert.Equal(t, uid, *msgs[0].UserID)
			assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
			assert.Equal(t, "hello\nwith newline", msgs[1].Content)
			assert.Nil(t, msgs[1].UserID)
		})
	}
}

func TestStore_ListRecent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, c := range []string{"a", "b", "c", "d", "e"} {
				_, err := store.Append(ctx, "s1", chat.RoleUser, c, nil)
				require.NoError(t, err)
			}

			recent, err := store.ListRecentBySession(ctx, "s1", 3)
			require.NoError(t, err)
			require.Len(t, recent, 3)
			assert.Equal(t, "c", recent[0].Content)
			assert.Equal(t, "e", recent[2].Content)
		})
	}
}

func TestStore_ConcurrentAppendsGetDistinctIDs(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 20

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Append(ctx, "s1", chat.RoleUser, "x", nil)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			msgs, err := store.ListBySession(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, msgs, n)
			for i := 1; i < n; i++ {
				assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
			}
		})
	}
}

func TestStore_Linkage(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			l, err := store.GetLinkage(ctx, "s1")
			require.NoError(t, err)
			assert.Nil(t, l)

			l, err = store.UpdateLinkage(ctx, "s1", "chain", "turn-1", "")
			require.NoError(t, err)
			assert.Equal(t, "turn-1", l.LastTurnID)
			assert.Equal(t, "chain", l.Provider)
			assert.Nil(t, l.ConversationID)
			assert.Equal(t, uint64(1), l.Version)

			_, err = store.UpdateLinkage(ctx, "s1", "openai", "turn-2", "conv-1")
			require.NoError(t, err)
			_, err = store.UpdateLinkage(ctx, "other", "chain", "turn-x", "conv-x")
			require.NoError(t, err)

			l, err = store.GetLinkage(ctx, "s1")
			require.NoError(t, err)
			require.NotNil(t, l)
			assert.Equal(t, "turn-2", l.LastTurnID)
			assert.Equal(t, "conv-1", l.Conversation())
			assert.Equal(t, "openai", l.Provider)
			assert.Equal(t, uint64(2), l.Version)
			assert.Same(t, l, l.For("openai"))
			assert.Nil(t, l.For("chain"))
		})
	}
}

func TestRepo_StorageUnavailable(t *testing.T) {
	db := openTestDB(t)
	repo := chat.NewRepo(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.Append(context.Background(), "s1", chat.RoleUser, "hi", nil)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	_, err = repo.ListBySession(context.Background(), "s1")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestRepo_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	db := openTestDBAt(t, path)
	repo := chat.NewRepo(db)
	for _, text := range []string{"hello", "hi there", "how are you"} {
		role := chat.RoleUser
		if text == "hi there" {
			role = chat.RoleAssistant
		}
		_, err := repo.Append(ctx, "s1", role, text, nil)
		require.NoError(t, err)
	}
	_, err := repo.UpdateLinkage(ctx, "s1", "chain", "turn-1", "conv-1")
	require.NoError(t, err)

	before, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	linkBefore, err := repo.GetLinkage(ctx, "s1")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	reopened := chat.NewRepo(openTestDBAt(t, path))
	after, err := reopened.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Role, after[i].Role)
		assert.Equal(t, before[i].Content, after[i].Content)
	}

	linkAfter, err := reopened.GetLinkage(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, linkAfter)
	assert.Equal(t, linkBefore.Provider, linkAfter.Provider)
	assert.Equal(t, linkBefore.LastTurnID, linkAfter.LastTurnID)
	assert.Equal(t, linkBefore.Conversation(), linkAfter.Conversation())
	assert.Equal(t, linkBefore.Version, linkAfter.Version)

	next, err := reopened.Append(ctx, "s1", chat.RoleAssistant, "fine", nil)
	require.NoError(t, err)
	assert.Greater(t, next.ID, before[len(before)-1].ID)
}
