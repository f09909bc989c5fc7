package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
)

var ErrCartQuantityTooLarge = errors.New("quantity exceeds the per-line limit")

// cartLockStripes bounds the session locks; sessions sharing a stripe serialize
const cartLockStripes = 64

type CartService interface {
	GetCart(ctx context.Context, session string) (*model.Cart, error)
	AddItem(ctx context.Context, session, itemID string, quantity int) (*model.Cart, error)
	UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, session, itemID string) (*model.Cart, error)
	ClearCart(ctx context.Context, session string) error
	// MergeCarts moves a guest cart into the signed-in user's cart
	MergeCarts(ctx context.Context, from, into string) (*model.Cart, error)
}

type cartService struct {
	repo        repository.CartRepository
	catalog     CatalogService
	maxQuantity int
	locks       [cartLockStripes]sync.Mutex
}

// NewCartService keeps one cart per session. maxQuantity 0 means unbounded.
func NewCartService(repo repository.CartRepository, catalog CatalogService, maxQuantity int) CartService {
	return &cartService{repo: repo, catalog: catalog, maxQuantity: maxQuantity}
}

func (s *cartService) lock(session string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(session))
	mu := &s.locks[h.Sum32()%cartLockStripes]
	mu.Lock()
	return mu.Unlock
}

// mutate loads, changes and saves a session cart under the session lock
func (s *cartService) mutate(ctx context.Context, session string, fn func(*model.Cart) error) (*model.Cart, error) {
	unlock := s.lock(session)
	defer unlock()

	cart, err := s.repo.Load(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, session, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) checkQuantity(quantity int) error {
	if s.maxQuantity > 0 && quantity > s.maxQuantity {
		return ErrCartQuantityTooLarge
	}
	return nil
}

func (s *cartService) GetCart(ctx context.Context, session string) (*model.Cart, error) {
	return s.repo.Load(ctx, session)
}

func (s *cartService) AddItem(ctx context.Context, session, itemID string, quantity int) (*model.Cart, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, session, func(cart *model.Cart) error {
		if quantity < 1 {
			quantity = 1
		}
		existing, _ := cart.Line(itemID)
		if err := s.checkQuantity(existing.Quantity + quantity); err != nil {
			return err
		}
		cart.AddItem(*item, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Item added to cart", map[string]interface{}{
		"session":  session,
		"item_id":  itemID,
		"quantity": quantity,
		"count":    cart.Count(),
	})
	return cart, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.Cart, error) {
	return s.mutate(ctx, session, func(cart *model.Cart) error {
		if err := s.checkQuantity(quantity); err != nil {
			return err
		}
		cart.UpdateQuantity(itemID, quantity)
		return nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, session, itemID string) (*model.Cart, error) {
	return s.mutate(ctx, session, func(cart *model.Cart) error {
		cart.RemoveItem(itemID)
		return nil
	})
}

func (s *cartService) ClearCart(ctx context.Context, session string) error {
	unlock := s.lock(session)
	defer unlock()
	return s.repo.Delete(ctx, session)
}

func (s *cartService) MergeCarts(ctx context.Context, from, into string) (*model.Cart, error) {
	if from == "" || from == into {
		return s.GetCart(ctx, into)
	}

	unlockFrom := s.lock(from)
	guest, err := s.repo.Load(ctx, from)
	if err == nil && !guest.IsEmpty() {
		err = s.repo.Delete(ctx, from)
	}
	unlockFrom()
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	if guest.IsEmpty() {
		return s.GetCart(ctx, into)
	}

	return s.mutate(ctx, into, func(cart *model.Cart) error {
		for _, line := range guest.Lines() {
			existing, _ := cart.Line(line.ItemID)
			qty := line.Quantity
			if s.maxQuantity > 0 && existing.Quantity+qty > s.maxQuantity {
				qty = s.maxQuantity - existing.Quantity
			}
			if qty <= 0 {
				continue
			}
			cart.AddItem(model.CatalogItem{
				ID:    line.ItemID,
				Name:  line.Name,
				Price: line.Price,
				Image: line.Image,
				Scent: line.Scent,
			}, qty)
		}
		return nil
	})
}
