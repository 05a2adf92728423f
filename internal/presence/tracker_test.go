package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
)

type recordingUserRepo struct {
	writes chan presenceWrite
}

type presenceWrite struct {
	userID int
	online bool
}

func (r *recordingUserRepo) CreateUser(context.Context, string, string) (models.User, error) {
	return models.User{}, nil
}

func (r *recordingUserRepo) GetUser(context.Context, int) (models.User, error) {
	return models.User{}, nil
}

func (r *recordingUserRepo) GetUserByUsername(context.Context, string) (models.User, error) {
	return models.User{}, nil
}

func (r *recordingUserRepo) SetOnline(_ context.Context, userID int, online bool) error {
	r.writes <- presenceWrite{userID: userID, online: online}
	return nil
}

var _ repositories.UserRepository = (*recordingUserRepo)(nil)

func awaitWrite(t *testing.T, writes chan presenceWrite) presenceWrite {
	t.Helper()
	select {
	case w := <-writes:
		return w
	case <-time.After(time.Second):
		t.Fatal("presence write never happened")
		return presenceWrite{}
	}
}

func TestTrackerWritesAsynchronously(t *testing.T) {
	repo := &recordingUserRepo{writes: make(chan presenceWrite, 2)}
	tracker := NewTracker(repo)

	tracker.MarkOnline(7)
	require.Equal(t, presenceWrite{userID: 7, online: true}, awaitWrite(t, repo.writes))

	tracker.MarkOffline(7)
	require.Equal(t, presenceWrite{userID: 7, online: false}, awaitWrite(t, repo.writes))
}
