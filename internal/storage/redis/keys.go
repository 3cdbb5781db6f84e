package redis

import (
	"fmt"

	"github.com/mcoot/chessgame-go/internal/model"
)

// Key prefix for all chess server data
const keyPrefix = "chess"

// userKey returns the Redis key for a User record
func userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, username)
}

// userSessionKey returns the Redis key holding a user's active session ID
func userSessionKey(username string) string {
	return fmt.Sprintf("%s:user_session:%s", keyPrefix, username)
}

// sessionKey returns the Redis key for the session -> username index
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// queueKey returns the Redis key for the matchmaking queue HASH
func queueKey() string {
	return fmt.Sprintf("%s:queue", keyPrefix)
}

// gameKey returns the Redis key for a Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%d", keyPrefix, id)
}

// gameSeqKey returns the Redis key for the game ID counter
func gameSeqKey() string {
	return fmt.Sprintf("%s:game_seq", keyPrefix)
}

// gamesByUserIndexKey returns the Redis key for the SET of game IDs a user plays in
func gamesByUserIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:games_by_user:%s", keyPrefix, username)
}
