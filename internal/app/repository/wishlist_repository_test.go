package repository

import (
	"testing"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlistRepository(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)
	repo := NewWishlistRepository(testDB)

	item := func() *model.WishlistItem {
		return &model.WishlistItem{UserID: 1, ItemID: "camphor-pure-camphor", Name: "Pure Camphor", Price: model.NewMoneyFromFloat(249)}
	}

	require.NoError(t, repo.Add(item()))
	require.NoError(t, repo.Add(item()), "adding twice is a no-op")

	count, err := repo.CountByUser(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ok, err := repo.Exists(1, "camphor-pure-camphor")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := repo.Remove(1, "camphor-pure-camphor")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(1, "camphor-pure-camphor")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestNotificationRepository(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)
	repo := NewNotificationRepository(testDB)

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(&model.Notification{
			UserID: 1, Type: model.NotificationTypeGeneral, Title: title, Message: title,
		}))
	}
	require.NoError(t, repo.Create(&model.Notification{UserID: 2, Type: model.NotificationTypeGeneral, Title: "x", Message: "x"}))

	list, total, err := repo.FindByUserID(1, false, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)

	ok, err := repo.MarkAsRead(1, list[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkAsRead(2, list[1].ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot mark another user's notification")

	unread, err := repo.UnreadCount(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkAllAsRead(1))
	unread, err = repo.UnreadCount(1)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
