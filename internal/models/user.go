package models

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsOnline     bool      `db:"is_online" json:"is_online"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the participant view exposed in room listings.
type UserSummary struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	IsOnline bool   `db:"is_online" json:"is_online"`
}
