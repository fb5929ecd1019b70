// Package logstore is the append-only operational log table and its
// size-bounded retention job.
package logstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry *models.LogEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// Logf persists one operational log line. It is the database-backed
// counterpart to each component's stdlib logger, used where an entry
// must survive process restarts for operator review (e.g. a dropped
// packet from an unresolved NAS). A failure to persist is itself only
// logged to stdlib log, never returned, so a database hiccup never
// blocks the caller's real work.
func (s *Store) Logf(ctx context.Context, level, logger, format string, args ...interface{}) {
	entry := &models.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Logger:    logger,
		Message:   fmt.Sprintf(format, args...),
	}
	if err := s.Append(ctx, entry); err != nil {
		log.Printf("logstore: failed to persist log entry: %v", err)
	}
}

// Prune keeps only the most recent `limit` rows by insertion order.
// Rather than deleting row-by-row, it finds the id at the
// (count-limit)th position in ascending order and deletes everything
// at or below that id in a single statement.
func (s *Store) Prune(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.LogEntry{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count <= int64(limit) {
		return 0, nil
	}

	toDelete := count - int64(limit)
	var thresholdID uint
	err := s.db.WithContext(ctx).Model(&models.LogEntry{}).
		Order("id ASC").
		Offset(int(toDelete - 1)).
		Limit(1).
		Pluck("id", &thresholdID).Error
	if err != nil {
		return 0, err
	}
	if thresholdID == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id <= ?", thresholdID).Delete(&models.LogEntry{})
	return result.RowsAffected, result.Error
}
