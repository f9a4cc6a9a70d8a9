package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name         string
		user         model.User
		wantField    string
		wantTimezone string
	}{
		{name: "valid", user: model.User{Name: "Ada", Email: "ada@example.com", Timezone: "Europe/Budapest"}, wantTimezone: "Europe/Budapest"},
		{name: "default timezone", user: model.User{Name: "Ada", Email: "ada@example.com"}, wantTimezone: "Europe/London"},
		{name: "missing name", user: model.User{Name: " ", Email: "ada@example.com"}, wantField: "name"},
		{name: "invalid email", user: model.User{Name: "Ada", Email: "not-an-email"}, wantField: "email"},
		{name: "unknown timezone", user: model.User{Name: "Ada", Email: "ada@example.com", Timezone: "Mars/Olympus"}, wantField: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockUserRepository)
			svc := NewUserService(repo, nil, "Europe/London", zap.NewNop())
			repo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			user := tt.user

			// Act
			err := svc.CreateUser(context.Background(), &user)

			// Assert
			if tt.wantField != "" {
				var verr *apperr.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.Equal(t, tt.wantTimezone, user.Timezone)
			assert.False(t, user.CreatedAt.IsZero())
		})
	}
}

func TestCreateUser_RepositoryError(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, nil, "", zap.NewNop())
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("duplicate key value violates unique constraint"))

	err := svc.CreateUser(context.Background(), &model.User{Name: "Ada", Email: "ada@example.com"})

	assert.ErrorContains(t, err, "failed to create user")
}

func TestGetUser(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, nil, "UTC", zap.NewNop())
	ctx := context.Background()
	repo.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", Name: "Ada"}, nil)
	repo.On("FindByID", ctx, "missing").Return(nil, apperr.ErrNotFound)

	user, err := svc.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	_, err = svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetUser(ctx, "")
	assert.True(t, apperr.IsValidation(err))
}
