// Package statsjobs implements the four periodic snapshot jobs that
// feed the append-only time-series stats tables.
package statsjobs

import (
	"context"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"gorm.io/gorm"
)

type Collector struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Collector {
	return &Collector{db: db}
}

// ServerActiveSessions snapshots the server-wide Active-session count.
func (c *Collector) ServerActiveSessions(ctx context.Context) error {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.RadiusSession{}).
		Where("status = ?", models.SessionActive).Count(&count).Error; err != nil {
		return err
	}
	return c.db.WithContext(ctx).Create(&models.ServerSessionSample{
		Timestamp:      time.Now().UTC(),
		ActiveSessions: int(count),
	}).Error
}

// ServerTotalTraffic snapshots the server-wide cumulative traffic.
func (c *Collector) ServerTotalTraffic(ctx context.Context) error {
	var row struct {
		Rx, Tx int64
	}
	if err := c.db.WithContext(ctx).Model(&models.RadiusUser{}).
		Select("COALESCE(SUM(rx_traffic),0) as rx, COALESCE(SUM(tx_traffic),0) as tx").
		Scan(&row).Error; err != nil {
		return err
	}
	return c.db.WithContext(ctx).Create(&models.ServerTrafficSample{
		Timestamp:    time.Now().UTC(),
		RxTraffic:    row.Rx,
		TxTraffic:    row.Tx,
		TotalTraffic: row.Rx + row.Tx,
	}).Error
}

// UsersActiveSessions snapshots the current active-session count of
// every user with at least one active session (users at zero get no
// row), reading the denormalized counter rather than recomputing it
// live.
func (c *Collector) UsersActiveSessions(ctx context.Context) error {
	var users []models.RadiusUser
	if err := c.db.WithContext(ctx).Select("username", "current_sessions").
		Where("current_sessions > 0").Find(&users).Error; err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	samples := make([]models.UserSessionSample, 0, len(users))
	for _, u := range users {
		samples = append(samples, models.UserSessionSample{
			Timestamp:      now,
			Username:       u.Username,
			ActiveSessions: u.CurrentSessions,
		})
	}
	return c.db.WithContext(ctx).Create(&samples).Error
}

// UsersTotalTraffic snapshots each user's cumulative traffic.
func (c *Collector) UsersTotalTraffic(ctx context.Context) error {
	var users []models.RadiusUser
	if err := c.db.WithContext(ctx).Select("username", "rx_traffic", "tx_traffic", "total_traffic").
		Find(&users).Error; err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	samples := make([]models.UserTrafficSample, 0, len(users))
	for _, u := range users {
		samples = append(samples, models.UserTrafficSample{
			Timestamp:    now,
			Username:     u.Username,
			RxTraffic:    u.RxTraffic,
			TxTraffic:    u.TxTraffic,
			TotalTraffic: u.TotalTraffic,
		})
	}
	return c.db.WithContext(ctx).Create(&samples).Error
}
