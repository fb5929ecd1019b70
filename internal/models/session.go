package models

import "time"

// SessionStatus is the lifecycle state of a RadiusSession.
type SessionStatus string

const (
	SessionActive  SessionStatus = "Active"
	SessionStopped SessionStatus = "Stopped"
)

// RFC 2866 §5.10 Acct-Terminate-Cause values used by this service.
const (
	TerminateUserRequest        = 1
	TerminateLostCarrier        = 2
	TerminateLostService        = 3
	TerminateIdleTimeout        = 4
	TerminateSessionTimeout     = 5
	TerminateAdminReset         = 6
	TerminateAdminReboot        = 7
	TerminatePortError          = 8
	TerminateNASError           = 9
	TerminateNASRequest         = 10
	TerminateNASReboot          = 11
	TerminatePortUnneeded       = 12
	TerminatePortPreempted      = 13
	TerminatePortSuspended      = 14
	TerminateServiceUnavailable = 15
	TerminateCallback           = 16
	TerminateUserError          = 17
	TerminateHostRequest        = 18
)

// RadiusSession is one VPN session, identified by (session_id, nas_ip_address).
type RadiusSession struct {
	ID                uint          `gorm:"column:id;primaryKey" json:"id"`
	SessionID         string        `gorm:"column:session_id;size:64;uniqueIndex:idx_session_nas_ip" json:"session_id"`
	Username          string        `gorm:"column:username;size:64;index" json:"username"`
	NASIdentifier     string        `gorm:"column:nas_identifier;size:64" json:"nas_identifier"`
	NASIPAddress      string        `gorm:"column:nas_ip_address;size:45;uniqueIndex:idx_session_nas_ip" json:"nas_ip_address"`
	FramedIPAddress   string        `gorm:"column:framed_ip_address;size:45" json:"framed_ip_address,omitempty"`
	CallingStationID  string        `gorm:"column:calling_station_id;size:64" json:"calling_station_id,omitempty"`
	Status            SessionStatus `gorm:"column:status;size:16;index" json:"status"`
	StartTime         time.Time     `gorm:"column:start_time" json:"start_time"`
	LastUpdated       time.Time     `gorm:"column:last_updated;index" json:"last_updated"`
	StopTime          *time.Time    `gorm:"column:stop_time;index" json:"stop_time,omitempty"`
	SessionTime       int64         `gorm:"column:session_time;default:0" json:"session_time"`
	InputOctets       int64         `gorm:"column:input_octets;default:0" json:"input_octets"`
	OutputOctets      int64         `gorm:"column:output_octets;default:0" json:"output_octets"`
	InputPackets      int64         `gorm:"column:input_packets;default:0" json:"input_packets"`
	OutputPackets     int64         `gorm:"column:output_packets;default:0" json:"output_packets"`
	TerminateCause    *int          `gorm:"column:terminate_cause" json:"terminate_cause,omitempty"`
}

func (RadiusSession) TableName() string {
	return "radius_sessions"
}
