// Package sql is a relational storage backend built on gorm, supporting
// SQLite and PostgreSQL.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// Storage is a gorm-backed implementation of the storage interface
type Storage struct {
	db *gorm.DB
}

// New opens the configured database and migrates the schema
func New(cfg Config) (*Storage, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		// SQLite serialises writers; a single connection avoids lock errors
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm handle, migrating the schema
func NewWithDB(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&userRecord{}, &queueRecord{}, &gameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) FindUser(ctx context.Context, username string) (*model.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).First(&rec, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *Storage) AddUser(ctx context.Context, user *model.User) error {
	rec := userRecord{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Rating:       user.Rating,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrUserExists
	}
	return nil
}

func (s *Storage) UpdateRating(ctx context.Context, username string, rating int) error {
	result := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("username = ?", username).
		Updates(map[string]any{"rating": rating, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Session operations

func (s *Storage) BindSession(ctx context.Context, username string, sessionID model.SessionID) error {
	result := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("username = ?", username).
		Update("active_session_id", string(sessionID))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (s *Storage) FindSessionByUsername(ctx context.Context, username string) (model.SessionID, error) {
	user, err := s.FindUser(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	if user.ActiveSessionID == "" {
		return "", model.ErrSessionNotFound
	}
	return user.ActiveSessionID, nil
}

func (s *Storage) DeleteSession(ctx context.Context, sessionID model.SessionID) error {
	// Matching on the session ID leaves a newer login untouched
	return s.db.WithContext(ctx).Model(&userRecord{}).
		Where("active_session_id = ?", string(sessionID)).
		Update("active_session_id", "").Error
}

// Queue operations

func (s *Storage) EnqueuePlayer(ctx context.Context, entry model.QueueEntry) (bool, error) {
	rec := queueRecord{
		Username:   entry.Username,
		SessionID:  string(entry.SessionID),
		Rating:     entry.Rating,
		EnqueuedAt: entry.EnqueuedAt,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Storage) SnapshotQueue(ctx context.Context) ([]model.QueueEntry, error) {
	var recs []queueRecord
	if err := s.db.WithContext(ctx).Order("enqueued_at, username").Find(&recs).Error; err != nil {
		return nil, err
	}
	entries := make([]model.QueueEntry, 0, len(recs))
	for i := range recs {
		entries = append(entries, recs[i].toModel())
	}
	return entries, nil
}

func (s *Storage) RemoveFromQueue(ctx context.Context, usernames ...string) error {
	if len(usernames) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("username IN ?", usernames).Delete(&queueRecord{}).Error
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) (model.GameID, error) {
	rec := newGameRecord(game)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, err
	}
	return model.GameID(rec.ID), nil
}

func (s *Storage) UpdateGamePosition(ctx context.Context, id model.GameID, position string) error {
	result := s.db.WithContext(ctx).Model(&gameRecord{}).
		Where("id = ?", int64(id)).
		Update("position", position)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrGameNotFound
	}
	return nil
}

func (s *Storage) FindGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var rec gameRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *Storage) CompleteGame(ctx context.Context, id model.GameID, winner model.Winner) error {
	result := s.db.WithContext(ctx).Model(&gameRecord{}).
		Where("id = ? AND status = ?", int64(id), string(model.GameStatusOngoing)).
		Updates(map[string]any{"status": string(model.GameStatusCompleted), "winner": string(winner)})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing updated: either missing or already complete
	if _, err := s.FindGame(ctx, id); err != nil {
		return err
	}
	return model.ErrGameComplete
}

func (s *Storage) GamesInvolving(ctx context.Context, username string) ([]*model.Game, error) {
	var recs []gameRecord
	err := s.db.WithContext(ctx).
		Where("white_username = ? OR black_username = ?", username, username).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	games := make([]*model.Game, 0, len(recs))
	for i := range recs {
		games = append(games, recs[i].toModel())
	}
	return games, nil
}

func (s *Storage) RemoveGame(ctx context.Context, id model.GameID) error {
	return s.db.WithContext(ctx).Delete(&gameRecord{}, "id = ?", int64(id)).Error
}
