// Package acctengine classifies Accounting-Request packets by
// Acct-Status-Type and either enqueues a Session Buffer operation or,
// for NAS-On/NAS-Off, performs a synchronous bulk stop.
package acctengine

import (
	"context"
	"log"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/sessionbuffer"
	"github.com/proisp/radiusd/internal/sessionstore"
	"github.com/proisp/radiusd/internal/userstore"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
)

type Engine struct {
	buffer   *sessionbuffer.Buffer
	sessions *sessionstore.Store
	users    *userstore.Store
	logger   *log.Logger
}

func New(buffer *sessionbuffer.Buffer, sessions *sessionstore.Store, users *userstore.Store) *Engine {
	return &Engine{
		buffer:   buffer,
		sessions: sessions,
		users:    users,
		logger:   log.New(log.Writer(), "acctengine: ", log.LstdFlags),
	}
}

// Handle classifies the request and applies its effect. An
// Accounting-Response is written unconditionally, after the effect is
// applied. For Start, Stop and Interim-Update the effect is an enqueue,
// so the response does not wait on a flush; Accounting-On/Off flush the
// buffer and bulk-stop synchronously before the response is written.
func (e *Engine) Handle(ctx context.Context, w radius.ResponseWriter, r *radius.Request, nas *models.NASClient) {
	statusType := rfc2866.AcctStatusType_Get(r.Packet)
	username := rfc2865.UserName_GetString(r.Packet)
	sessionID := rfc2866.AcctSessionID_GetString(r.Packet)
	key := sessionbuffer.Key{SessionID: sessionID, NASIP: nas.IPAddress}

	switch statusType {
	case rfc2866.AcctStatusType_Value_Start:
		e.handleStart(key, username, nas, r)
	case rfc2866.AcctStatusType_Value_Stop:
		e.handleStop(key, username, r)
	case rfc2866.AcctStatusType_Value_InterimUpdate:
		e.handleUpdate(key, username, r)
	case rfc2866.AcctStatusType_Value_AccountingOn:
		e.handleAccountingOn(ctx, nas)
	case rfc2866.AcctStatusType_Value_AccountingOff:
		e.handleAccountingOff(ctx, nas)
	default:
		e.logger.Printf("WARNING unrecognized acct-status-type=%d from nas_ip=%s", statusType, nas.IPAddress)
	}

	resp := r.Response(radius.CodeAccountingResponse)
	if err := w.Write(resp); err != nil {
		e.logger.Printf("ERROR writing accounting-response: %v", err)
	}
}

func (e *Engine) handleStart(key sessionbuffer.Key, username string, nas *models.NASClient, r *radius.Request) {
	if key.SessionID == "" {
		e.logger.Printf("WARNING start with missing Acct-Session-Id from nas_ip=%s, dropping", nas.IPAddress)
		return
	}
	nasIdentifier := rfc2865.NASIdentifier_GetString(r.Packet)
	var framedIP string
	if ip, err := rfc2865.FramedIPAddress_Lookup(r.Packet); err == nil {
		framedIP = ip.String()
	}
	callingStationID := rfc2865.CallingStationID_GetString(r.Packet)
	e.buffer.AddStart(key, username, nasIdentifier, framedIP, callingStationID)
}

func (e *Engine) handleStop(key sessionbuffer.Key, username string, r *radius.Request) {
	if key.SessionID == "" {
		e.logger.Printf("WARNING stop with missing Acct-Session-Id for user=%s, dropping", username)
		return
	}
	var cause *int
	if c := int(rfc2866.AcctTerminateCause_Get(r.Packet)); c != 0 {
		cause = &c
	}
	e.buffer.AddStop(key, username, cause, readCounters(r))
}

func (e *Engine) handleUpdate(key sessionbuffer.Key, username string, r *radius.Request) {
	if key.SessionID == "" {
		e.logger.Printf("WARNING interim-update with missing Acct-Session-Id for user=%s, dropping", username)
		return
	}
	e.buffer.AddUpdate(key, username, readCounters(r))
}

func readCounters(r *radius.Request) sessionbuffer.Counters {
	return sessionbuffer.Counters{
		SessionTime:   int64(rfc2866.AcctSessionTime_Get(r.Packet)),
		InputOctets:   int64(rfc2866.AcctInputOctets_Get(r.Packet)),
		OutputOctets:  int64(rfc2866.AcctOutputOctets_Get(r.Packet)),
		InputPackets:  int64(rfc2866.AcctInputPackets_Get(r.Packet)),
		OutputPackets: int64(rfc2866.AcctOutputPackets_Get(r.Packet)),
	}
}

// handleAccountingOn bulk-stops every Active session for this NAS,
// flushing the buffer first so a session that was still only pending
// (not yet in the store) is committed before the bulk stop runs
// against it.
func (e *Engine) handleAccountingOn(ctx context.Context, nas *models.NASClient) {
	if err := e.buffer.Flush(ctx); err != nil {
		e.logger.Printf("ERROR pre-accounting-on flush failed for nas_ip=%s: %v", nas.IPAddress, err)
	}
	e.bulkStop(ctx, nas, models.TerminateNASReboot)
}

func (e *Engine) handleAccountingOff(ctx context.Context, nas *models.NASClient) {
	if err := e.buffer.Flush(ctx); err != nil {
		e.logger.Printf("ERROR pre-accounting-off flush failed for nas_ip=%s: %v", nas.IPAddress, err)
	}
	e.bulkStop(ctx, nas, models.TerminateNASRequest)
}

func (e *Engine) bulkStop(ctx context.Context, nas *models.NASClient, cause int) {
	usernames, err := e.sessions.BulkStopByNAS(ctx, nas.IPAddress, cause)
	if err != nil {
		e.logger.Printf("ERROR bulk-stop for nas_ip=%s failed: %v", nas.IPAddress, err)
		return
	}
	for _, username := range usernames {
		active, err := e.sessions.CountActive(ctx, nil, username)
		if err != nil {
			e.logger.Printf("ERROR recomputing session count for user=%s: %v", username, err)
			continue
		}
		if err := e.users.RefreshSessionCounts(ctx, nil, username, active); err != nil {
			e.logger.Printf("ERROR refreshing session counts for user=%s: %v", username, err)
		}
	}
}
