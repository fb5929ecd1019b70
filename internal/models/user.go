package models

import (
	"strings"
	"time"
)

// CleartextPrefix marks a password_hash value as stored in the clear
// rather than bcrypt-hashed, mirroring the "ctp:" convention carried
// over from the subscriber-provisioning tooling this was distilled from.
const CleartextPrefix = "ctp:"

// RadiusUser is an authenticated principal: a VPN subscriber with a
// password, a traffic quota, and a concurrent-session ceiling.
type RadiusUser struct {
	ID                    uint       `gorm:"column:id;primaryKey" json:"id"`
	Username              string     `gorm:"column:username;size:64;uniqueIndex" json:"username"`
	PasswordHash          string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	IsActive              bool       `gorm:"column:is_active;default:true;index" json:"is_active"`
	ExpirationDate        *time.Time `gorm:"column:expiration_date" json:"expiration_date"`
	MaxConcurrentSessions int        `gorm:"column:max_concurrent_sessions;default:1" json:"max_concurrent_sessions"`
	AllowedTraffic        *int64     `gorm:"column:allowed_traffic" json:"allowed_traffic"`
	RxTraffic             int64      `gorm:"column:rx_traffic;default:0" json:"rx_traffic"`
	TxTraffic             int64      `gorm:"column:tx_traffic;default:0" json:"tx_traffic"`
	TotalTraffic          int64      `gorm:"column:total_traffic;default:0" json:"total_traffic"`
	CurrentSessions       int        `gorm:"column:current_sessions;default:0" json:"current_sessions"`
	RemainingSessions     int        `gorm:"column:remaining_sessions;default:0" json:"remaining_sessions"`
	Notes                 string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt             time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (RadiusUser) TableName() string {
	return "radius_users"
}

// IsCleartext reports whether PasswordHash holds a plaintext password
// rather than a bcrypt digest.
func (u *RadiusUser) IsCleartext() bool {
	return strings.HasPrefix(u.PasswordHash, CleartextPrefix)
}

// CleartextValue strips the cleartext marker prefix.
func (u *RadiusUser) CleartextValue() string {
	return strings.TrimPrefix(u.PasswordHash, CleartextPrefix)
}

// IsExpired reports whether the account's expiration date has passed.
// A nil ExpirationDate never expires.
func (u *RadiusUser) IsExpired() bool {
	return u.ExpirationDate != nil && u.ExpirationDate.Before(time.Now().UTC())
}

// IsOverQuota reports whether the user has reached or exceeded the
// configured traffic allowance. A nil AllowedTraffic means unmetered.
func (u *RadiusUser) IsOverQuota() bool {
	return u.AllowedTraffic != nil && u.TotalTraffic >= *u.AllowedTraffic
}

// StatusLabel is the computed account status, never persisted on its
// own: Disabled > Expired > OverQuota > OK, first match wins.
type StatusLabel string

const (
	StatusDisabled  StatusLabel = "Disabled"
	StatusExpired   StatusLabel = "Expired"
	StatusOverQuota StatusLabel = "OverQuota"
	StatusOK        StatusLabel = "OK"
)

func (u *RadiusUser) Status() StatusLabel {
	switch {
	case !u.IsActive:
		return StatusDisabled
	case u.IsExpired():
		return StatusExpired
	case u.IsOverQuota():
		return StatusOverQuota
	default:
		return StatusOK
	}
}
