package models

import "time"

// LogEntry is one operational log line. Append-only; pruned by the
// log-retention scheduler job down to the most recent N rows.
type LogEntry struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Level     string    `gorm:"column:level;size:16" json:"level"`
	Logger    string    `gorm:"column:logger;size:64" json:"logger"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
}

func (LogEntry) TableName() string {
	return "radius_log_entries"
}
