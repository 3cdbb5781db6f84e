package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// ErrTxConflict is returned when an optimistic transaction keeps losing races
var ErrTxConflict = errors.New("redis transaction conflict")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// watch runs fn inside WATCH on keys, retrying when another client wins the race
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	retries := s.cfg.MaxTxRetries
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

// User operations

func (s *Storage) FindUser(ctx context.Context, username string) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}

	sid, err := s.client.Get(ctx, userSessionKey(username)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	user.ActiveSessionID = model.SessionID(sid)
	return &user, nil
}

func (s *Storage) AddUser(ctx context.Context, user *model.User) error {
	u := *user
	u.ActiveSessionID = ""
	data, err := json.Marshal(&u)
	if err != nil {
		return err
	}

	// No TTL: accounts are permanent
	added, err := s.client.SetNX(ctx, userKey(user.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !added {
		return model.ErrUserExists
	}
	return nil
}

func (s *Storage) UpdateRating(ctx context.Context, username string, rating int) error {
	key := userKey(username)
	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrUserNotFound
			}
			return err
		}

		var user model.User
		if err := json.Unmarshal(data, &user); err != nil {
			return err
		}
		user.Rating = rating
		user.UpdatedAt = time.Now()

		updated, err := json.Marshal(&user)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

// Session operations

func (s *Storage) BindSession(ctx context.Context, username string, sessionID model.SessionID) error {
	exists, err := s.client.Exists(ctx, userKey(username)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrUserNotFound
	}

	key := userSessionKey(username)
	return s.watch(ctx, func(tx *redis.Tx) error {
		previous, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" {
				pipe.Del(ctx, sessionKey(model.SessionID(previous)))
			}
			pipe.Set(ctx, key, string(sessionID), s.cfg.SessionTTL)
			pipe.Set(ctx, sessionKey(sessionID), username, s.cfg.SessionTTL)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) FindSessionByUsername(ctx context.Context, username string) (model.SessionID, error) {
	sid, err := s.client.Get(ctx, userSessionKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrSessionNotFound
		}
		return "", err
	}
	return model.SessionID(sid), nil
}

func (s *Storage) DeleteSession(ctx context.Context, sessionID model.SessionID) error {
	username, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	key := userSessionKey(username)
	return s.watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKey(sessionID))
			// A newer login may have replaced this session; leave it alone
			if current == string(sessionID) {
				pipe.Del(ctx, key)
			}
			return nil
		})
		return err
	}, key)
}

// Queue operations

func (s *Storage) EnqueuePlayer(ctx context.Context, entry model.QueueEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return s.client.HSetNX(ctx, queueKey(), entry.Username, data).Result()
}

func (s *Storage) SnapshotQueue(ctx context.Context) ([]model.QueueEntry, error) {
	values, err := s.client.HGetAll(ctx, queueKey()).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.QueueEntry, 0, len(values))
	for _, raw := range values {
		var entry model.QueueEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue // Skip invalid data
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})
	return entries, nil
}

func (s *Storage) RemoveFromQueue(ctx context.Context, usernames ...string) error {
	if len(usernames) == 0 {
		return nil
	}
	return s.client.HDel(ctx, queueKey(), usernames...).Err()
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) (model.GameID, error) {
	seq, err := s.client.Incr(ctx, gameSeqKey()).Result()
	if err != nil {
		return 0, err
	}

	g := *game
	g.ID = model.GameID(seq)
	data, err := json.Marshal(&g)
	if err != nil {
		return 0, err
	}

	idStr := strconv.FormatInt(seq, 10)
	whiteIdx := gamesByUserIndexKey(g.White.Username)
	blackIdx := gamesByUserIndexKey(g.Black.Username)

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), data, s.cfg.GameTTL)
	pipe.SAdd(ctx, whiteIdx, idStr)
	pipe.SAdd(ctx, blackIdx, idStr)
	pipe.Expire(ctx, whiteIdx, s.cfg.GameTTL) // Keep index TTL in sync
	pipe.Expire(ctx, blackIdx, s.cfg.GameTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return g.ID, nil
}

// updateGame applies fn to the stored game under WATCH, preserving its TTL
func (s *Storage) updateGame(ctx context.Context, id model.GameID, fn func(*model.Game) error) error {
	key := gameKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return err
		}

		var game model.Game
		if err := json.Unmarshal(data, &game); err != nil {
			return err
		}
		if err := fn(&game); err != nil {
			return err
		}

		updated, err := json.Marshal(&game)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) UpdateGamePosition(ctx context.Context, id model.GameID, position string) error {
	return s.updateGame(ctx, id, func(game *model.Game) error {
		game.Position = position
		return nil
	})
}

func (s *Storage) FindGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) CompleteGame(ctx context.Context, id model.GameID, winner model.Winner) error {
	return s.updateGame(ctx, id, func(game *model.Game) error {
		if game.Status == model.GameStatusCompleted {
			return model.ErrGameComplete
		}
		game.Status = model.GameStatusCompleted
		game.Winner = winner
		return nil
	})
}

func (s *Storage) GamesInvolving(ctx context.Context, username string) ([]*model.Game, error) {
	indexKey := gamesByUserIndexKey(username)

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Game{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid game id %q in index: %w", idStr, err)
		}
		keys = append(keys, gameKey(model.GameID(id)))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	games := make([]*model.Game, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Game may have expired
		}
		var game model.Game
		if err := json.Unmarshal([]byte(str), &game); err != nil {
			continue // Skip invalid data
		}
		games = append(games, &game)
	}

	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (s *Storage) RemoveGame(ctx context.Context, id model.GameID) error {
	game, err := s.FindGame(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrGameNotFound) {
			return nil
		}
		return err
	}

	idStr := strconv.FormatInt(int64(id), 10)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, gameKey(id))
	pipe.SRem(ctx, gamesByUserIndexKey(game.White.Username), idStr)
	pipe.SRem(ctx, gamesByUserIndexKey(game.Black.Username), idStr)
	_, err = pipe.Exec(ctx)
	return err
}
