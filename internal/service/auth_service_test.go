package service_test

import (
	"context"
	"testing"

	"poscore/internal/config"
	"poscore/internal/dto"
	"poscore/internal/repository"
	"poscore/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) service.AuthService {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 2}
	return service.NewAuthService(repository.NewUserRepository(newTestDB(t)), cfg)
}

func TestLoginAndRefresh(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, dto.CreateUserRequest{Username: "ana", FullName: "Ana Pérez", Password: "secreto", Role: "cashier"})
	require.NoError(t, err)
	assert.Equal(t, "cashier", created.Role)

	login, err := svc.Login(ctx, dto.LoginRequest{Username: "ana", Password: "secreto"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", login.TokenType)
	assert.Equal(t, 3600, login.ExpiresIn)
	assert.Equal(t, created.ID, login.User.ID)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(login.AccessToken, claims, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "cashier", claims["role"])
	assert.Equal(t, service.TokenTypeAccess, claims["token_type"])

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, dto.CreateUserRequest{Username: "ana", FullName: "Ana", Password: "secreto", Role: "admin"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "ana", Password: "otra"})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = svc.Login(ctx, dto.LoginRequest{Username: "nadie", Password: "secreto"})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestCreateUser_Validation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, dto.CreateUserRequest{Username: "ana", FullName: "Ana", Password: "secreto", Role: "owner"})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = svc.CreateUser(ctx, dto.CreateUserRequest{Username: "ana", FullName: "Ana", Password: "secreto", Role: "admin"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, dto.CreateUserRequest{Username: "ana", FullName: "Ana 2", Password: "secreto", Role: "admin"})
	assert.ErrorIs(t, err, service.ErrValidation)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
