package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"room-chat-service/internal/auth"
	"room-chat-service/internal/chat"
	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
	"room-chat-service/internal/telemetry"
)

const defaultRoomDescription = "Default emergency communication room"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// AuthHandler manages registration, login and the current-user endpoint.
type AuthHandler struct {
	users  repositories.UserRepository
	rooms  repositories.RoomRepository
	tokens *auth.TokenManager
	audit  *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, rooms repositories.RoomRepository, tokens *auth.TokenManager, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, rooms: rooms, tokens: tokens, audit: audit}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account, adds it to the default room and returns a
// token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 3 || len(username) > 30 || !usernamePattern.MatchString(username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 characters of letters, numbers and underscores"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	if _, err := h.users.GetUserByUsername(c.Request.Context(), username); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is already taken"})
		return
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), username, hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	if err := h.ensureDefaultRoom(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare default room"})
		return
	}

	h.users.SetOnline(c.Request.Context(), user.ID, true)
	user.IsOnline = true

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	auditUserID := int64(user.ID)
	h.audit.Emit(c.Request.Context(), "INFO", "user registered: "+user.Username, requestIDFromContext(c), &auditUserID)
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := h.ensureDefaultRoom(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare default room"})
		return
	}

	h.users.SetOnline(c.Request.Context(), user.ID, true)
	user.IsOnline = true

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	auditUserID := int64(user.ID)
	h.audit.Emit(c.Request.Context(), "INFO", "user logged in: "+user.Username, requestIDFromContext(c), &auditUserID)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetInt("userID")
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ensureDefaultRoom makes sure the well-known default room exists and the
// user is a persisted participant of it. This is the one place the room is
// auto-created; the legacy endpoints never create it.
func (h *AuthHandler) ensureDefaultRoom(ctx context.Context, user models.User) error {
	room, err := h.rooms.EnsureRoom(ctx, chat.DefaultRoomName, defaultRoomDescription, user.ID)
	if err != nil {
		return err
	}
	return h.rooms.AddParticipant(ctx, room.ID, user.ID)
}
