package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// CartRepository persists session carts. Load returns an empty cart for
// unknown sessions.
type CartRepository interface {
	Load(ctx context.Context, session string) (*model.Cart, error)
	Save(ctx context.Context, session string, cart *model.Cart) error
	Delete(ctx context.Context, session string) error
}

func cartKey(session string) string {
	return "cart:" + session
}

type redisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartRepository stores each cart as one JSON value with a sliding TTL
func NewRedisCartRepository(client *redis.Client, ttl time.Duration) CartRepository {
	return &redisCartRepository{client: client, ttl: ttl}
}

func (r *redisCartRepository) Load(ctx context.Context, session string) (*model.Cart, error) {
	raw, err := r.client.Get(ctx, cartKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewCart(), nil
	}
	if err != nil {
		logger.Error("Failed to load cart from redis", err, map[string]interface{}{
			"session": session,
		})
		return nil, err
	}

	cart := model.NewCart()
	if err := json.Unmarshal(raw, cart); err != nil {
		// A corrupt entry is dropped rather than blocking the session
		logger.Warn("Discarding unreadable cart", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
		return model.NewCart(), nil
	}
	if cart.Items == nil {
		cart.Items = []model.CartLine{}
	}
	return cart, nil
}

func (r *redisCartRepository) Save(ctx context.Context, session string, cart *model.Cart) error {
	if cart.IsEmpty() {
		return r.Delete(ctx, session)
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, cartKey(session), raw, r.ttl).Err(); err != nil {
		logger.Error("Failed to save cart to redis", err, map[string]interface{}{
			"session": session,
			"lines":   len(cart.Items),
		})
		return err
	}
	return nil
}

func (r *redisCartRepository) Delete(ctx context.Context, session string) error {
	return r.client.Del(ctx, cartKey(session)).Err()
}

type memoryCartEntry struct {
	cart      model.Cart
	expiresAt time.Time
}

type memoryCartRepository struct {
	mu    sync.Mutex
	carts map[string]memoryCartEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCartRepository keeps carts in process memory. Used when Redis is
// disabled and in tests.
func NewMemoryCartRepository(ttl time.Duration) CartRepository {
	return &memoryCartRepository{
		carts: make(map[string]memoryCartEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *memoryCartRepository) Load(_ context.Context, session string) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.carts[session]
	if !ok {
		return model.NewCart(), nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.carts, session)
		return model.NewCart(), nil
	}
	return &model.Cart{Items: entry.cart.Lines()}, nil
}

func (r *memoryCartRepository) Save(_ context.Context, session string, cart *model.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cart.IsEmpty() {
		delete(r.carts, session)
		return nil
	}
	r.carts[session] = memoryCartEntry{
		cart:      model.Cart{Items: cart.Lines()},
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *memoryCartRepository) Delete(_ context.Context, session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, session)
	return nil
}
