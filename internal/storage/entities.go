package storage

import "time"

// User is an account record. PasswordHash never crosses the HTTP boundary.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Bio          string `json:"bio"`
	AvatarColor  string `json:"avatarColor"`
	PasswordHash string `json:"-"`
}

type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Message rows are append-only. Sender is the display name of the author,
// joined at read time.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	SenderID  int64     `json:"senderId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}
