package sessionbuffer

import (
	"time"

	"github.com/google/uuid"
)

// OpType identifies the accounting lifecycle event a buffered
// Operation represents.
type OpType int

const (
	OpStart OpType = iota + 1
	OpUpdate
	OpStop
)

func (t OpType) String() string {
	switch t {
	case OpStart:
		return "start"
	case OpUpdate:
		return "update"
	case OpStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Counters is the set of accounting counters an Accounting-Request
// carries for Update and Stop operations.
type Counters struct {
	SessionTime   int64
	InputOctets   int64
	OutputOctets  int64
	InputPackets  int64
	OutputPackets int64
}

// Key identifies a session independent of its lifecycle state.
type Key struct {
	SessionID string
	NASIP     string
}

// Operation is one accounting event enqueued onto the Session Buffer.
// ID is a correlation id assigned at enqueue; it is never a lookup key,
// and no log line in this package prints it.
type Operation struct {
	ID               uuid.UUID
	Type             OpType
	Key              Key
	Username         string
	NASIdentifier    string
	FramedIP         string
	CallingStationID string
	Timestamp        time.Time
	Counters         Counters
	TerminateCause   *int
}

func newOperation(t OpType, key Key, username string) *Operation {
	return &Operation{
		ID:        uuid.New(),
		Type:      t,
		Key:       key,
		Username:  username,
		Timestamp: time.Now().UTC(),
	}
}
