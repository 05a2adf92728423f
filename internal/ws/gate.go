package ws

import (
	"context"
	"errors"
	"fmt"

	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// TokenVerifier checks a bearer token's signature and expiry and returns the
// user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// Gate authenticates an inbound connection before it may join any room. On
// any failure the connection is rejected at handshake time; no partial
// session exists.
type Gate struct {
	tokens TokenVerifier
	users  repositories.UserRepository
}

// NewGate constructs a Gate.
func NewGate(tokens TokenVerifier, users repositories.UserRepository) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate resolves the bearer token presented at handshake time to a
// user.
func (g *Gate) Authenticate(ctx context.Context, rawToken string) (models.User, error) {
	if rawToken == "" {
		return models.User{}, ErrMissingToken
	}

	userID, err := g.tokens.Verify(rawToken)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, ErrUnknownUser
		}
		return models.User{}, err
	}
	return user, nil
}
