package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cedarItem() model.CatalogItem {
	return model.CatalogItem{
		ID:    "wood-infused-cedar",
		Name:  "Wood Infused Air Freshener Cedar Wood",
		Price: model.NewMoneyFromFloat(319),
		Scent: "Cedar Wood",
	}
}

func exerciseCartRepository(t *testing.T, repo CartRepository, session string) {
	ctx := context.Background()

	cart, err := repo.Load(ctx, session)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	cart.AddItem(cedarItem(), 2)
	require.NoError(t, repo.Save(ctx, session, cart))

	loaded, err := repo.Load(ctx, session)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, "638.00", loaded.Total().String())

	other, err := repo.Load(ctx, session+"-other")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty(), "sessions must not share carts")

	loaded.Clear()
	require.NoError(t, repo.Save(ctx, session, loaded))
	cleared, err := repo.Load(ctx, session)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
}

func TestMemoryCartRepository(t *testing.T) {
	exerciseCartRepository(t, NewMemoryCartRepository(time.Hour), "guest:abc")
}

func TestMemoryCartRepository_Isolation(t *testing.T) {
	repo := NewMemoryCartRepository(time.Hour)
	ctx := context.Background()

	cart := model.NewCart()
	cart.AddItem(cedarItem(), 1)
	require.NoError(t, repo.Save(ctx, "user:1", cart))

	// mutating the caller's cart after Save must not leak into the store
	cart.UpdateQuantity("wood-infused-cedar", 5)

	loaded, err := repo.Load(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Count())
}

func TestMemoryCartRepository_Expiry(t *testing.T) {
	repo := NewMemoryCartRepository(time.Minute).(*memoryCartRepository)
	now := time.Now()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	cart := model.NewCart()
	cart.AddItem(cedarItem(), 1)
	require.NoError(t, repo.Save(ctx, "guest:x", cart))

	now = now.Add(2 * time.Minute)
	loaded, err := repo.Load(ctx, "guest:x")
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}

func TestRedisCartRepository(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	session := "test:" + time.Now().Format("150405.000000")
	defer client.Del(context.Background(), cartKey(session))

	exerciseCartRepository(t, NewRedisCartRepository(client, time.Minute), session)
}
