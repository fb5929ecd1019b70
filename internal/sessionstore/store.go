// Package sessionstore is the persistent RadiusSession store: lookup,
// counter-delta computation under NAS counter-reset conditions, and
// the bulk reaping/trimming queries the scheduler jobs drive.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Find returns radiuserr.ErrSessionNotFound when no row matches the
// (session_id, nas_ip) key.
func (s *Store) Find(ctx context.Context, tx *gorm.DB, sessionID, nasIP string) (*models.RadiusSession, error) {
	db := tx
	if db == nil {
		db = s.db
	}
	var sess models.RadiusSession
	err := db.WithContext(ctx).
		Where("session_id = ? AND nas_ip_address = ?", sessionID, nasIP).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, radiuserr.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// FindActiveByFramedIP returns the Active session for this user on
// this framed IP, excluding a given session id, used to detect the
// "stale session displaced by re-authentication" condition.
func (s *Store) FindActiveByFramedIP(ctx context.Context, tx *gorm.DB, username, framedIP, excludeSessionID string) (*models.RadiusSession, error) {
	if framedIP == "" {
		return nil, radiuserr.ErrSessionNotFound
	}
	db := tx
	if db == nil {
		db = s.db
	}
	var sess models.RadiusSession
	err := db.WithContext(ctx).
		Where("username = ? AND framed_ip_address = ? AND status = ? AND session_id <> ?",
			username, framedIP, models.SessionActive, excludeSessionID).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, radiuserr.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Create(ctx context.Context, tx *gorm.DB, sess *models.RadiusSession) error {
	db := tx
	if db == nil {
		db = s.db
	}
	return db.WithContext(ctx).Create(sess).Error
}

// Delta computes the effective counter increment between a newly
// observed cumulative value and the previously stored one. When the
// NAS restarts mid-session its counters begin again at zero; any
// observed decrease is treated as a reset and the new value is
// credited as the full delta rather than going negative.
func Delta(newValue, oldValue int64) int64 {
	if newValue >= oldValue {
		return newValue - oldValue
	}
	return newValue
}

// ApplyCounters overwrites the session's cumulative counter fields
// with freshly observed absolute values and returns the (rx, tx)
// deltas relative to what was stored before the call.
func ApplyCounters(sess *models.RadiusSession, sessionTime, inputOctets, outputOctets, inputPackets, outputPackets int64) (deltaRx, deltaTx int64) {
	deltaRx = Delta(inputOctets, sess.InputOctets)
	deltaTx = Delta(outputOctets, sess.OutputOctets)
	sess.SessionTime = sessionTime
	sess.InputOctets = inputOctets
	sess.OutputOctets = outputOctets
	sess.InputPackets = inputPackets
	sess.OutputPackets = outputPackets
	return deltaRx, deltaTx
}

func (s *Store) Update(ctx context.Context, tx *gorm.DB, sess *models.RadiusSession) error {
	db := tx
	if db == nil {
		db = s.db
	}
	return db.WithContext(ctx).Save(sess).Error
}

// CountActive returns the authoritative Active-session count for a
// user, used to recompute current_sessions/remaining_sessions.
func (s *Store) CountActive(ctx context.Context, tx *gorm.DB, username string) (int, error) {
	db := tx
	if db == nil {
		db = s.db
	}
	var count int64
	err := db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("username = ? AND status = ?", username, models.SessionActive).
		Count(&count).Error
	return int(count), err
}

// CleanupDeadSessions bulk-stops Active sessions whose last_updated is
// older than the stale threshold, applying no traffic delta — we
// assume no new traffic was reported since the last observation.
// Returns the distinct usernames affected, so the caller can refresh
// their session counts, and the number of sessions stopped.
func (s *Store) CleanupDeadSessions(ctx context.Context, staleThreshold time.Time) ([]string, int64, error) {
	var usernames []string
	err := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ? AND last_updated < ?", models.SessionActive, staleThreshold).
		Distinct("username").Pluck("username", &usernames).Error
	if err != nil {
		return nil, 0, err
	}
	if len(usernames) == 0 {
		return nil, 0, nil
	}

	cause := models.TerminateLostCarrier
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ? AND last_updated < ?", models.SessionActive, staleThreshold).
		Updates(map[string]interface{}{
			"status":          models.SessionStopped,
			"stop_time":       now,
			"terminate_cause": cause,
		})
	return usernames, result.RowsAffected, result.Error
}

// CleanupInactiveSessions keeps only the most recent `keep` Stopped
// sessions by stop_time and deletes the rest.
func (s *Store) CleanupInactiveSessions(ctx context.Context, keep int) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ?", models.SessionStopped).Count(&count).Error; err != nil {
		return 0, err
	}
	if count <= int64(keep) {
		return 0, nil
	}

	var keepIDs []uint
	err := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ?", models.SessionStopped).
		Order("stop_time DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error
	if err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).
		Where("status = ? AND id NOT IN ?", models.SessionStopped, keepIDs).
		Delete(&models.RadiusSession{})
	return result.RowsAffected, result.Error
}

// CleanupStaleByAge stops Active sessions that started more than
// maxAge ago regardless of their last_updated time — a backstop for a
// NAS that keeps interim-updating a session long past any sane
// duration. Supplemental to the interim-interval-based dead-session
// reaper.
func (s *Store) CleanupStaleByAge(ctx context.Context, maxAge time.Duration) ([]string, int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	var usernames []string
	err := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ? AND start_time < ?", models.SessionActive, cutoff).
		Distinct("username").Pluck("username", &usernames).Error
	if err != nil {
		return nil, 0, err
	}
	if len(usernames) == 0 {
		return nil, 0, nil
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ? AND start_time < ?", models.SessionActive, cutoff).
		Updates(map[string]interface{}{
			"status":          models.SessionStopped,
			"stop_time":       now,
			"terminate_cause": models.TerminateLostCarrier,
		})
	return usernames, result.RowsAffected, result.Error
}

// BulkStopByNAS stops every Active session for a given NAS IP with the
// given terminate cause, used by C6's synchronous NAS-On/NAS-Off
// handling. Returns the affected usernames.
func (s *Store) BulkStopByNAS(ctx context.Context, nasIP string, terminateCause int) ([]string, error) {
	var usernames []string
	err := s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("nas_ip_address = ? AND status = ?", nasIP, models.SessionActive).
		Distinct("username").Pluck("username", &usernames).Error
	if err != nil {
		return nil, err
	}
	if len(usernames) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("nas_ip_address = ? AND status = ?", nasIP, models.SessionActive).
		Updates(map[string]interface{}{
			"status":          models.SessionStopped,
			"stop_time":       now,
			"terminate_cause": terminateCause,
		}).Error
	return usernames, err
}
