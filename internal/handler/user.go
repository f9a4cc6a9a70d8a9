package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/pkg/api"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// UserManager creates and reads users
type UserManager interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// UserHandler implements user endpoints
type UserHandler struct {
	service UserManager
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserManager, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Users registers a user
func (h *UserHandler) PostApiV1Users(c *gin.Context) {
	var req api.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    string(req.Email),
		Timezone: derefString(req.Timezone),
	}
	if err := h.service.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, h.logger, err, "Failed to create user")
		return
	}

	h.logger.Info("user created", zap.String("user_id", user.ID))

	c.JSON(http.StatusCreated, userResponse(user))
}

// GetApiV1UsersId returns a user
func (h *UserHandler) GetApiV1UsersId(c *gin.Context, id types.UUID) {
	userID := uuidToString(id)

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get user", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

func userResponse(user *model.User) api.UserResponse {
	email := types.Email(user.Email)
	return api.UserResponse{
		Id:        stringToUUID(user.ID),
		Name:      stringPtr(user.Name),
		Email:     &email,
		Timezone:  stringPtr(user.Timezone),
		CreatedAt: timePtr(user.CreatedAt),
	}
}
