package service

import (
	"sync"
	"testing"
	"time"

	"github.com/carpore/carpore-backend/config"
	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	cedarID   = "wood-infused-cedar"   // 319.00
	camphorID = "camphor-pure-camphor" // 249.00
	teakID    = "wood-infused-teak"    // 349.00
)

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		OrderNumberPrefix:     "CP",
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFee:           decimal.NewFromInt(50),
		TaxRate:               decimal.Zero,
		DefaultCountry:        "India",
	}
}

// tickingClock advances one millisecond per call so generated order numbers differ
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func newTestBuilder() *OrderBuilder {
	b := NewOrderBuilder(testCheckoutConfig(), "INR")
	b.now = tickingClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	return b
}

// setupCatalogDB returns a migrated in-memory database with the launch catalog
func setupCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	require.NoError(t, db.SeedCatalog(testDB, db.DefaultCatalog(), false))
	return testDB
}

func newTestCatalog(testDB *gorm.DB) CatalogService {
	return NewCatalogService(repository.NewCatalogRepository(testDB), func(key string) string {
		return "https://cdn.example.com/" + key
	})
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Asha",
		LastName:     "Rao",
		Phone:        "9876543210",
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func validCustomer() model.CustomerInfo {
	return model.CustomerInfo{
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     "asha@example.com",
		Phone:     "9876543210",
	}
}

func validAddress() model.PostalAddress {
	return model.PostalAddress{
		Street:  "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}
}

func cartWith(lines ...model.CartLine) *model.Cart {
	cart := model.NewCart()
	cart.Items = append(cart.Items, lines...)
	return cart
}

func line(id string, price float64, qty int) model.CartLine {
	return model.CartLine{ItemID: id, Name: id, Price: model.NewMoneyFromFloat(price), Quantity: qty}
}
