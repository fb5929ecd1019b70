// Package userstore is the persistent RadiusUser store: lookup,
// password verification, status predicates, and atomic traffic-counter
// updates.
package userstore

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByUsername returns radiuserr.ErrUserNotFound when no row matches.
func (s *Store) FindByUsername(ctx context.Context, username string) (*models.RadiusUser, error) {
	var u models.RadiusUser
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, radiuserr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// Both the cleartext and bcrypt branches compare in constant time
// against the stored value, so a timing side-channel cannot be used to
// recover the password. The two branches differ in cost from each
// other (bcrypt is far slower), so timing can reveal which one an
// account uses.
func CheckPassword(u *models.RadiusUser, plaintext string) bool {
	if u.IsCleartext() {
		stored := u.CleartextValue()
		if len(stored) != len(plaintext) {
			// still perform a comparison of equal cost to avoid a
			// length-derived timing signal
			subtle.ConstantTimeCompare([]byte(stored), []byte(stored))
			return false
		}
		return subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) == 1
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext))
	return err == nil
}

// CanAuthenticate applies the account predicates in the order the
// reject-reason table expects: disabled, then expired, then over-quota.
func CanAuthenticate(u *models.RadiusUser) error {
	switch u.Status() {
	case models.StatusDisabled:
		return radiuserr.ErrAccountDisabled
	case models.StatusExpired:
		return radiuserr.ErrAccountExpired
	case models.StatusOverQuota:
		return radiuserr.ErrOverQuota
	default:
		return nil
	}
}

// AddTrafficDelta applies a non-negative (rx, tx) delta to a user's
// counters using an atomic SQL expression so concurrent flushes for
// different sessions of the same user never lose an update.
func (s *Store) AddTrafficDelta(ctx context.Context, tx *gorm.DB, username string, deltaRx, deltaTx int64) error {
	if deltaRx <= 0 && deltaTx <= 0 {
		return nil
	}
	if deltaRx < 0 {
		deltaRx = 0
	}
	if deltaTx < 0 {
		deltaTx = 0
	}
	db := tx
	if db == nil {
		db = s.db
	}
	return db.WithContext(ctx).Model(&models.RadiusUser{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"rx_traffic":    gorm.Expr("rx_traffic + ?", deltaRx),
			"tx_traffic":    gorm.Expr("tx_traffic + ?", deltaTx),
			"total_traffic": gorm.Expr("total_traffic + ?", deltaRx+deltaTx),
		}).Error
}

// RefreshSessionCounts recomputes current_sessions and
// remaining_sessions together from the authoritative Active-session
// count, and persists both in the same statement. This is the only
// code path in the whole service allowed to write remaining_sessions;
// it must never be computed in isolation from current_sessions.
func (s *Store) RefreshSessionCounts(ctx context.Context, tx *gorm.DB, username string, activeCount int) error {
	db := tx
	if db == nil {
		db = s.db
	}
	var u models.RadiusUser
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	remaining := u.MaxConcurrentSessions - activeCount
	if remaining < 0 {
		remaining = 0
	}
	return db.WithContext(ctx).Model(&models.RadiusUser{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"current_sessions":  activeCount,
			"remaining_sessions": remaining,
		}).Error
}

// PendingAwareConcurrencyOK reports whether the user may open another
// session given the buffer-pending count for in-flight Starts that
// have not yet been flushed to the stored current_sessions counter.
func PendingAwareConcurrencyOK(u *models.RadiusUser, pending int) bool {
	return u.CurrentSessions+pending < u.MaxConcurrentSessions
}
