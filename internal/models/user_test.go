package models

import (
	"testing"
	"time"
)

func TestIsCleartext(t *testing.T) {
	cases := map[string]struct {
		hash string
		want bool
	}{
		"cleartext":        {hash: "ctp:hunter2", want: true},
		"bcrypt":           {hash: "$2a$10$abcdefghijklmnopqrstuv", want: false},
		"empty":            {hash: "", want: false},
		"prefix substring": {hash: "ctphunter2", want: false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			u := &RadiusUser{PasswordHash: c.hash}
			if got := u.IsCleartext(); got != c.want {
				t.Errorf("IsCleartext() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestCleartextValue(t *testing.T) {
	u := &RadiusUser{PasswordHash: "ctp:hunter2"}
	if got := u.CleartextValue(); got != "hunter2" {
		t.Errorf("CleartextValue() = %q, want %q", got, "hunter2")
	}
}

func TestIsExpired(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	cases := map[string]struct {
		exp  *time.Time
		want bool
	}{
		"nil never expires": {exp: nil, want: false},
		"past expires":       {exp: &past, want: true},
		"future does not":    {exp: &future, want: false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			u := &RadiusUser{ExpirationDate: c.exp}
			if got := u.IsExpired(); got != c.want {
				t.Errorf("IsExpired() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsOverQuota(t *testing.T) {
	limit := int64(1000)

	cases := map[string]struct {
		allowed *int64
		total   int64
		want    bool
	}{
		"unmetered":     {allowed: nil, total: 999999, want: false},
		"under":         {allowed: &limit, total: 999, want: false},
		"exactly at":    {allowed: &limit, total: 1000, want: true},
		"over":          {allowed: &limit, total: 1001, want: true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			u := &RadiusUser{AllowedTraffic: c.allowed, TotalTraffic: c.total}
			if got := u.IsOverQuota(); got != c.want {
				t.Errorf("IsOverQuota() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestStatusPrecedence(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	limit := int64(100)

	cases := map[string]struct {
		u    RadiusUser
		want StatusLabel
	}{
		"disabled wins over expired": {
			u:    RadiusUser{IsActive: false, ExpirationDate: &past},
			want: StatusDisabled,
		},
		"expired wins over over-quota": {
			u:    RadiusUser{IsActive: true, ExpirationDate: &past, AllowedTraffic: &limit, TotalTraffic: 200},
			want: StatusExpired,
		},
		"over quota": {
			u:    RadiusUser{IsActive: true, AllowedTraffic: &limit, TotalTraffic: 200},
			want: StatusOverQuota,
		},
		"ok": {
			u:    RadiusUser{IsActive: true},
			want: StatusOK,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if got := c.u.Status(); got != c.want {
				t.Errorf("Status() = %v, want %v", got, c.want)
			}
		})
	}
}
