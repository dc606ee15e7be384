package model

import "time"

// ChatMessage is a persisted chat line in a pot's channel. Messages are
// owned by the pot: deleting the pot cascades to its chat history.
type ChatMessage struct {
	ID             string    `json:"id"        db:"id"`
	PotID          string    `json:"potId"     db:"pot_id"`
	SenderID       string    `json:"-"         db:"sender_id"`
	SenderNickname string    `json:"sender"    db:"-"` // joined from users on read
	Message        string    `json:"message"   db:"message"`
	SentAt         time.Time `json:"sentAt"    db:"sent_at"`
}
