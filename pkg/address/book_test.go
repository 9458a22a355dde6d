package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/repository"
)

func validAddress() models.Address {
	return models.Address{
		FullName: " Meera Iyer ",
		Line1:    "4 Residency Road",
		City:     "Bengaluru",
		State:    "KA",
		Pincode:  "560025",
		Phone:    "9811111111",
	}
}

func TestBook_AddAssignsIDAndMarksLastUsed(t *testing.T) {
	book := NewBook(repository.NewMemoryUsers(), zap.NewNop())
	ctx := context.Background()

	first, err := book.Add(ctx, "u1", validAddress())
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Meera Iyer", first.FullName)

	second, err := book.Add(ctx, "u1", validAddress())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	profile, err := book.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, profile.Addresses, 2)
	assert.Equal(t, second.ID, profile.LastUsedAddressID)

	pre, ok := profile.Preselect()
	require.True(t, ok)
	assert.Equal(t, second.ID, pre.ID)
}

func TestBook_AddRejectsIncompleteAddress(t *testing.T) {
	users := repository.NewMemoryUsers()
	book := NewBook(users, zap.NewNop())
	ctx := context.Background()

	addr := validAddress()
	addr.Phone = ""
	_, err := book.Add(ctx, "u1", addr)
	require.Error(t, err)
	assert.Equal(t, "phone", errs.FieldOf(err))

	profile, err := book.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, profile.Addresses)
}

func TestBook_RequiresUser(t *testing.T) {
	book := NewBook(repository.NewMemoryUsers(), zap.NewNop())
	_, err := book.Add(context.Background(), "", validAddress())
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
