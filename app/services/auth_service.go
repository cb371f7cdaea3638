package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
	"github.com/shashiranjanraj/kashvi-shop/pkg/auth"
)

type AuthService struct {
	users *repositories.UserRepository
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{users: repositories.NewUserRepository(db)}
}

// Login checks the password and issues a token carrying the user's id and
// role. Unknown emails and wrong passwords both return ErrInvalidLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if repositories.IsNotFound(err) {
		return "", nil, ErrInvalidLogin
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.Password, password) {
		return "", nil, ErrInvalidLogin
	}

	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}
