package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
)

// Store persists and retrieves per-session interaction history.
type Store interface {
	// Get returns the stored context for the session, or nil when the
	// session is unknown or its record has expired.
	Get(ctx context.Context, userID, sessionID string) (*Context, error)

	// Save replaces the session's record with the given context and a
	// fresh expiry of now plus ttl.
	Save(ctx context.Context, userID, sessionID string, data *Context, ttl time.Duration) error

	// Delete removes the session's record. Deleting an absent session
	// is not an error.
	Delete(ctx context.Context, userID, sessionID string) error
}

// Record is one stored session row. The context body is serialized as
// JSON; expiry is an absolute unix timestamp so restarts cannot extend
// a session's lifetime.
type Record struct {
	UserID      string    `gorm:"primaryKey;column:user_id"`
	SessionID   string    `gorm:"primaryKey;column:session_id"`
	Context     Context   `gorm:"serializer:json"`
	LastUpdated time.Time `gorm:"column:last_updated"`
	ExpiresAt   int64     `gorm:"column:expires_at;index"`
}

// GormStore implements Store on a SQLite database through gorm.
type GormStore struct {
	db      *gorm.DB
	table   string
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// now is swappable for expiry tests.
	now func() time.Time
}

// OpenDB opens the session database at the given path. Use ":memory:"
// for an ephemeral database in tests.
func OpenDB(path string, logger *slog.Logger) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logging.NewGormAdapter(logger),
	})
}

// NewGormStore creates a session store using the named table and
// migrates it.
func NewGormStore(db *gorm.DB, table string, logger *slog.Logger, metrics *instrumentation.Metrics) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Table(table).AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormStore{
		db:      db,
		table:   table,
		logger:  logging.WithComponent(logger, "session"),
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Get returns the session context, treating expired records the same
// as missing ones.
func (s *GormStore) Get(ctx context.Context, userID, sessionID string) (*Context, error) {
	var record Record
	err := s.db.WithContext(ctx).Table(s.table).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.RecordSessionStoreOperation(ctx, "get", instrumentation.StatusSuccess)
		return nil, nil
	}
	if err != nil {
		s.metrics.RecordSessionStoreOperation(ctx, "get", instrumentation.StatusError)
		return nil, err
	}

	if record.ExpiresAt <= s.now().Unix() {
		// Lazy expiry: the record is gone as far as callers are
		// concerned, remove it on the way out.
		if err := s.Delete(ctx, userID, sessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to remove expired session",
				logging.SessionHash(sessionID), logging.Err(err))
		}
		s.metrics.RecordSessionStoreOperation(ctx, "get", instrumentation.StatusSuccess)
		return nil, nil
	}

	s.metrics.RecordSessionStoreOperation(ctx, "get", instrumentation.StatusSuccess)
	return &record.Context, nil
}

// Save writes the full session record, stamping last_updated and
// resetting the expiry to now plus ttl.
func (s *GormStore) Save(ctx context.Context, userID, sessionID string, data *Context, ttl time.Duration) error {
	now := s.now()
	record := Record{
		UserID:      userID,
		SessionID:   sessionID,
		LastUpdated: now,
		ExpiresAt:   now.Add(ttl).Unix(),
	}
	if data != nil {
		record.Context = *data
	}

	err := s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		s.metrics.RecordSessionStoreOperation(ctx, "save", instrumentation.StatusError)
		return err
	}

	s.metrics.RecordSessionStoreOperation(ctx, "save", instrumentation.StatusSuccess)
	s.logger.DebugContext(ctx, "session saved",
		logging.SessionHash(sessionID),
		logging.UserHash(userID),
		slog.Int("interactions", len(record.Context.Interactions)))
	return nil
}

// Delete removes the session record if present.
func (s *GormStore) Delete(ctx context.Context, userID, sessionID string) error {
	err := s.db.WithContext(ctx).Table(s.table).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Delete(&Record{}).Error
	if err != nil {
		s.metrics.RecordSessionStoreOperation(ctx, "delete", instrumentation.StatusError)
		return err
	}
	s.metrics.RecordSessionStoreOperation(ctx, "delete", instrumentation.StatusSuccess)
	return nil
}

// PurgeExpired deletes every expired session record and returns how
// many were removed. Intended for a periodic background sweep.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Table(s.table).
		Where("expires_at <= ?", s.now().Unix()).
		Delete(&Record{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.logger.InfoContext(ctx, "purged expired sessions", slog.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
