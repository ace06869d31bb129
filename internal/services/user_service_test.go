package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

func TestUserServiceLookups(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user := createUser(t, db, "Ana", "ana@example.com")

	got, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", got.Name)

	_, err = svc.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	found, ok, err := svc.LookupByEmail(ctx, " ANA@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, user.ID, found.ID)

	_, ok, err = svc.LookupByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = svc.LookupByEmail(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestNewUserServiceRequiresDB(t *testing.T) {
	_, err := NewUserService(nil)
	require.Error(t, err)
}
