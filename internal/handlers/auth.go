package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
	"github.com/example/navalha/internal/utils"
)

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// UserStore persists staff accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
}

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	users        UserStore
	jwtSecret    string
	tokenExpires time.Duration
	logger       *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users UserStore, jwtSecret string, tokenExpires time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, tokenExpires: tokenExpires, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates a staff account. Only admins reach this endpoint.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if req.Phone == "" || req.Password == "" || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if req.Role == "" {
		req.Role = RoleStaff
	}
	if req.Role != RoleStaff && req.Role != RoleAdmin {
		return fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	user, err := h.createUser(c.UserContext(), req.Name, req.Phone, req.Password, req.Role)
	if err != nil {
		return err
	}

	token, err := utils.GenerateToken(h.jwtSecret, user.ID, user.Role, h.tokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates an existing staff member.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.FindByPhone(c.UserContext(), strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.jwtSecret, user.ID, user.Role, h.tokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (h *AuthHandler) EnsureAdmin(ctx context.Context, phone, password string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil
	}

	_, err := h.users.FindByPhone(ctx, phone)
	if err == nil {
		return nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return err
	}

	if _, err := h.createUser(ctx, "Admin", phone, password, RoleAdmin); err != nil {
		return err
	}
	h.logger.Info("bootstrap admin created", zap.String("phone", phone))
	return nil
}

func (h *AuthHandler) createUser(ctx context.Context, name, phone, password, role string) (*models.User, error) {
	if _, err := h.users.FindByPhone(ctx, phone); err == nil {
		return nil, fiber.NewError(fiber.StatusConflict, "user already exists")
	} else if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := &models.User{
		Name:         name,
		Phone:        phone,
		Role:         role,
		PasswordHash: passwordHash,
	}
	if err := h.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
