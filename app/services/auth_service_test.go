package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/auth"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	user := &models.User{Name: "Asha", Email: "asha@shop.test", Password: hash, Role: models.RoleAdmin}
	require.NoError(t, db.Create(user).Error)
	svc := NewAuthService(db)

	token, got, err := svc.Login(ctx, "  ASHA@shop.test ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, _, err = svc.Login(ctx, "asha@shop.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, _, err = svc.Login(ctx, "nobody@shop.test", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidLogin)
}
