package userstore

import (
	"errors"
	"testing"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPasswordCleartext(t *testing.T) {
	u := &models.RadiusUser{PasswordHash: "ctp:hunter2"}

	if !CheckPassword(u, "hunter2") {
		t.Error("expected match for correct cleartext password")
	}
	if CheckPassword(u, "wrongpass") {
		t.Error("expected no match for wrong cleartext password")
	}
	if CheckPassword(u, "short") {
		t.Error("expected no match for length-mismatched cleartext password")
	}
}

func TestCheckPasswordBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	u := &models.RadiusUser{PasswordHash: string(hash)}

	if !CheckPassword(u, "hunter2") {
		t.Error("expected match for correct bcrypt password")
	}
	if CheckPassword(u, "wrongpass") {
		t.Error("expected no match for wrong bcrypt password")
	}
}

func TestCanAuthenticate(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	limit := int64(100)

	cases := map[string]struct {
		u       models.RadiusUser
		wantErr error
	}{
		"disabled": {
			u:       models.RadiusUser{IsActive: false},
			wantErr: radiuserr.ErrAccountDisabled,
		},
		"expired": {
			u:       models.RadiusUser{IsActive: true, ExpirationDate: &past},
			wantErr: radiuserr.ErrAccountExpired,
		},
		"over quota": {
			u:       models.RadiusUser{IsActive: true, AllowedTraffic: &limit, TotalTraffic: 200},
			wantErr: radiuserr.ErrOverQuota,
		},
		"ok": {
			u:       models.RadiusUser{IsActive: true},
			wantErr: nil,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			err := CanAuthenticate(&c.u)
			if !errors.Is(err, c.wantErr) {
				if c.wantErr == nil && err != nil {
					t.Errorf("CanAuthenticate() = %v, want nil", err)
				} else if c.wantErr != nil {
					t.Errorf("CanAuthenticate() = %v, want %v", err, c.wantErr)
				}
			}
		})
	}
}

func TestPendingAwareConcurrencyOK(t *testing.T) {
	cases := map[string]struct {
		current, pending, max int
		want                  bool
	}{
		"room available":  {current: 0, pending: 0, max: 2, want: true},
		"pending fills it": {current: 1, pending: 1, max: 2, want: false},
		"already at max":  {current: 2, pending: 0, max: 2, want: false},
		"under max":       {current: 1, pending: 0, max: 2, want: true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			u := &models.RadiusUser{CurrentSessions: c.current, MaxConcurrentSessions: c.max}
			if got := PendingAwareConcurrencyOK(u, c.pending); got != c.want {
				t.Errorf("PendingAwareConcurrencyOK(current=%d, pending=%d, max=%d) = %v, want %v",
					c.current, c.pending, c.max, got, c.want)
			}
		})
	}
}
