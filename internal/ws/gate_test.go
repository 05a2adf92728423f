package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room-chat-service/internal/mocks"
	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
)

type verifierStub struct {
	ids map[string]int
}

func (v *verifierStub) Verify(token string) (int, error) {
	if id, ok := v.ids[token]; ok {
		return id, nil
	}
	return 0, ErrInvalidToken
}

func TestGateAuthenticate(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)
	users.On("GetUser", mock.Anything, 99).Return(models.User{}, repositories.ErrUserNotFound)

	gate := NewGate(&verifierStub{ids: map[string]int{"good": 1, "orphan": 99}}, users)

	user, err := gate.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, err = gate.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = gate.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	// valid signature but the user row is gone
	_, err = gate.Authenticate(context.Background(), "orphan")
	require.ErrorIs(t, err, ErrUnknownUser)
}
