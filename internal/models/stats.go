package models

import "time"

// ServerSessionSample snapshots the server-wide active-session count.
type ServerSessionSample struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	Timestamp     time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	ActiveSessions int      `gorm:"column:active_sessions" json:"active_sessions"`
}

func (ServerSessionSample) TableName() string { return "stats_server_sessions" }

// ServerTrafficSample snapshots server-wide cumulative traffic.
type ServerTrafficSample struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	RxTraffic    int64     `gorm:"column:rx_traffic" json:"rx_traffic"`
	TxTraffic    int64     `gorm:"column:tx_traffic" json:"tx_traffic"`
	TotalTraffic int64     `gorm:"column:total_traffic" json:"total_traffic"`
}

func (ServerTrafficSample) TableName() string { return "stats_server_traffic" }

// UserSessionSample snapshots one user's active-session count.
type UserSessionSample struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Username       string    `gorm:"column:username;size:64;index" json:"username"`
	ActiveSessions int       `gorm:"column:active_sessions" json:"active_sessions"`
}

func (UserSessionSample) TableName() string { return "stats_user_sessions" }

// UserTrafficSample snapshots one user's cumulative traffic.
type UserTrafficSample struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Username     string    `gorm:"column:username;size:64;index" json:"username"`
	RxTraffic    int64     `gorm:"column:rx_traffic" json:"rx_traffic"`
	TxTraffic    int64     `gorm:"column:tx_traffic" json:"tx_traffic"`
	TotalTraffic int64     `gorm:"column:total_traffic" json:"total_traffic"`
}

func (UserTrafficSample) TableName() string { return "stats_user_traffic" }

// AutoMigrate creates or updates all tables this service owns.
func AutoMigrate(db interface {
	AutoMigrate(dst ...interface{}) error
}) error {
	return db.AutoMigrate(
		&NASClient{},
		&RadiusUser{},
		&RadiusSession{},
		&LogEntry{},
		&ServerSessionSample{},
		&ServerTrafficSample{},
		&UserSessionSample{},
		&UserTrafficSample{},
	)
}
