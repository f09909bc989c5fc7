package repository

import (
	"testing"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAddress(userID uint, label string, isDefault bool) *model.Address {
	return &model.Address{
		UserID:    userID,
		Label:     label,
		FirstName: "Asha",
		Phone:     "9876543210",
		PostalAddress: model.PostalAddress{
			Street:  "12 MG Road",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560001",
			Country: "India",
		},
		IsDefault: isDefault,
	}
}

func TestAddressRepository_SingleDefault(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)
	repo := NewAddressRepository(testDB)

	home := newTestAddress(1, "Home", true)
	require.NoError(t, repo.Create(home))
	office := newTestAddress(1, "Office", true)
	require.NoError(t, repo.Create(office))

	list, err := repo.FindByUserID(1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Office", list[0].Label)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	require.NoError(t, repo.SetDefault(1, home.ID))
	def, err := repo.FindDefault(1)
	require.NoError(t, err)
	assert.Equal(t, home.ID, def.ID)

	assert.Error(t, repo.SetDefault(2, home.ID), "other users cannot claim the address")
}

func TestAddressRepository_Delete(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)
	repo := NewAddressRepository(testDB)

	addr := newTestAddress(1, "Home", false)
	require.NoError(t, repo.Create(addr))
	require.NoError(t, repo.Delete(addr.ID))

	list, err := repo.FindByUserID(1)
	require.NoError(t, err)
	assert.Empty(t, list)
}
