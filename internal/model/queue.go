package model

import "time"

// QueueEntry is a waiting player's matchmaking record
type QueueEntry struct {
	Username   string
	SessionID  SessionID
	Rating     int
	EnqueuedAt time.Time
}
