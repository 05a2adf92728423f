package presence

import (
	"context"
	"log"
	"time"

	"room-chat-service/internal/repositories"
)

const writeTimeout = 5 * time.Second

// Tracker maintains each user's online flag. Writes are best-effort and
// asynchronous so a slow database cannot stall connection handling. There is
// no reference counting across simultaneous connections of one user; the
// last write wins.
type Tracker struct {
	users repositories.UserRepository
}

// NewTracker constructs a Tracker.
func NewTracker(users repositories.UserRepository) *Tracker {
	return &Tracker{users: users}
}

// MarkOnline flags the user as online.
func (t *Tracker) MarkOnline(userID int) {
	t.setOnline(userID, true)
}

// MarkOffline flags the user as offline.
func (t *Tracker) MarkOffline(userID int) {
	t.setOnline(userID, false)
}

func (t *Tracker) setOnline(userID int, online bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := t.users.SetOnline(ctx, userID, online); err != nil {
			log.Printf("presence update failed user_id=%d online=%v: %v", userID, online, err)
		}
	}()
}
