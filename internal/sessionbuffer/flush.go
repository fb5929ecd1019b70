package sessionbuffer

import (
	"context"
	"errors"
	"time"

	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"github.com/proisp/radiusd/internal/sessionstore"
	"gorm.io/gorm"
)

// Flush drains the queue, collapses redundant operations, and applies
// them to the store in one transaction. Business-logic conditions
// (duplicate start, session not found) are logged and skipped without
// failing the batch; a genuine store failure aborts the transaction
// and re-enqueues the drained operations for the next attempt.
func (b *Buffer) Flush(ctx context.Context) error {
	drained := b.drain()
	if len(drained) == 0 {
		return nil
	}

	groups := foldGroups(drained)
	touched := make(map[string]struct{}, len(groups))

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range groups {
			touched[g.username] = struct{}{}
			if err := b.applyGroup(ctx, tx, g); err != nil {
				return err
			}
		}
		for username := range touched {
			active, err := b.sessions.CountActive(ctx, tx, username)
			if err != nil {
				return err
			}
			if err := b.users.RefreshSessionCounts(ctx, tx, username, active); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		b.logger.Printf("ERROR flush transaction failed, re-enqueueing %d operations: %v", len(drained), err)
		b.requeue(drained)
		return err
	}
	return nil
}

// applyGroup applies one merged group's effect. Business-logic
// conditions are logged and swallowed here (returning nil) so they
// never abort the surrounding transaction; only unexpected database
// errors are returned.
func (b *Buffer) applyGroup(ctx context.Context, tx *gorm.DB, g *group) error {
	switch g.kind {
	case groupStart:
		return b.applyStart(ctx, tx, g)
	case groupUpdate:
		return b.applyUpdate(ctx, tx, g)
	case groupStop:
		return b.applyStop(ctx, tx, g)
	case groupStartStop:
		return b.applyStartStop(ctx, tx, g)
	default:
		return nil
	}
}

func (b *Buffer) applyStart(ctx context.Context, tx *gorm.DB, g *group) error {
	op := g.start
	if _, err := b.sessions.Find(ctx, tx, g.key.SessionID, g.key.NASIP); err == nil {
		b.logger.Printf("duplicate start session_id=%s nas_ip=%s, skipping", g.key.SessionID, g.key.NASIP)
		return nil
	} else if !errors.Is(err, radiuserr.ErrSessionNotFound) {
		return err
	}

	if err := b.displaceStaleSession(ctx, tx, op.Username, op.FramedIP, g.key.SessionID); err != nil {
		return err
	}

	// Updates folded into this Start carry the latest counters; they
	// are credited in full, since the previous value is zero.
	c := g.latest.Counters
	sess := &models.RadiusSession{
		SessionID:        g.key.SessionID,
		Username:         op.Username,
		NASIdentifier:    op.NASIdentifier,
		NASIPAddress:     g.key.NASIP,
		FramedIPAddress:  op.FramedIP,
		CallingStationID: op.CallingStationID,
		Status:           models.SessionActive,
		StartTime:        op.Timestamp,
		LastUpdated:      g.latest.Timestamp,
		SessionTime:      c.SessionTime,
		InputOctets:      c.InputOctets,
		OutputOctets:     c.OutputOctets,
		InputPackets:     c.InputPackets,
		OutputPackets:    c.OutputPackets,
	}
	if err := b.sessions.Create(ctx, tx, sess); err != nil {
		return err
	}
	return b.users.AddTrafficDelta(ctx, tx, g.username, c.InputOctets, c.OutputOctets)
}

// displaceStaleSession stops any other Active session for this user on
// the same framed IP: a re-authentication from the same client address
// implies the prior session's NAS-side state is gone.
func (b *Buffer) displaceStaleSession(ctx context.Context, tx *gorm.DB, username, framedIP, newSessionID string) error {
	stale, err := b.sessions.FindActiveByFramedIP(ctx, tx, username, framedIP, newSessionID)
	if err != nil {
		if errors.Is(err, radiuserr.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	cause := models.TerminateNASRequest
	deltaRx, deltaTx := sessionstore.ApplyCounters(stale, stale.SessionTime, stale.InputOctets, stale.OutputOctets, stale.InputPackets, stale.OutputPackets)
	now := time.Now().UTC()
	stale.Status = models.SessionStopped
	stale.StopTime = &now
	stale.TerminateCause = &cause
	if err := b.sessions.Update(ctx, tx, stale); err != nil {
		return err
	}
	return b.users.AddTrafficDelta(ctx, tx, username, deltaRx, deltaTx)
}

func (b *Buffer) applyUpdate(ctx context.Context, tx *gorm.DB, g *group) error {
	sess, err := b.sessions.Find(ctx, tx, g.key.SessionID, g.key.NASIP)
	if err != nil {
		if errors.Is(err, radiuserr.ErrSessionNotFound) {
			b.logger.Printf("update for unknown session_id=%s nas_ip=%s, skipping", g.key.SessionID, g.key.NASIP)
			return nil
		}
		return err
	}

	c := g.latest.Counters
	deltaRx, deltaTx := sessionstore.ApplyCounters(sess, c.SessionTime, c.InputOctets, c.OutputOctets, c.InputPackets, c.OutputPackets)
	sess.LastUpdated = g.latest.Timestamp
	if err := b.sessions.Update(ctx, tx, sess); err != nil {
		return err
	}
	return b.users.AddTrafficDelta(ctx, tx, g.username, deltaRx, deltaTx)
}

func (b *Buffer) applyStop(ctx context.Context, tx *gorm.DB, g *group) error {
	sess, err := b.sessions.Find(ctx, tx, g.key.SessionID, g.key.NASIP)
	if err != nil {
		if errors.Is(err, radiuserr.ErrSessionNotFound) {
			b.logger.Printf("stop for unknown session_id=%s nas_ip=%s, skipping", g.key.SessionID, g.key.NASIP)
			return nil
		}
		return err
	}

	c := g.latest.Counters
	deltaRx, deltaTx := sessionstore.ApplyCounters(sess, c.SessionTime, c.InputOctets, c.OutputOctets, c.InputPackets, c.OutputPackets)
	now := time.Now().UTC()
	sess.Status = models.SessionStopped
	sess.StopTime = &now
	sess.TerminateCause = g.latest.TerminateCause
	if err := b.sessions.Update(ctx, tx, sess); err != nil {
		return err
	}
	return b.users.AddTrafficDelta(ctx, tx, g.username, deltaRx, deltaTx)
}

// applyStartStop inserts the session directly as Stopped, since it was
// opened and closed within the same flush window and never existed in
// the store in between. The full absolute counters are credited as the
// delta, since the "previous" value is implicitly zero.
func (b *Buffer) applyStartStop(ctx context.Context, tx *gorm.DB, g *group) error {
	if _, err := b.sessions.Find(ctx, tx, g.key.SessionID, g.key.NASIP); err == nil {
		// session already exists from a prior window; treat this as
		// an ordinary stop against the stored state instead.
		return b.applyStop(ctx, tx, g)
	} else if !errors.Is(err, radiuserr.ErrSessionNotFound) {
		return err
	}

	if err := b.displaceStaleSession(ctx, tx, g.start.Username, g.start.FramedIP, g.key.SessionID); err != nil {
		return err
	}

	c := g.latest.Counters
	now := time.Now().UTC()
	sess := &models.RadiusSession{
		SessionID:        g.key.SessionID,
		Username:         g.start.Username,
		NASIdentifier:    g.start.NASIdentifier,
		NASIPAddress:     g.key.NASIP,
		FramedIPAddress:  g.start.FramedIP,
		CallingStationID: g.start.CallingStationID,
		Status:           models.SessionStopped,
		StartTime:        g.start.Timestamp,
		LastUpdated:      now,
		StopTime:         &now,
		SessionTime:      c.SessionTime,
		InputOctets:      c.InputOctets,
		OutputOctets:     c.OutputOctets,
		InputPackets:     c.InputPackets,
		OutputPackets:    c.OutputPackets,
		TerminateCause:   g.latest.TerminateCause,
	}
	if err := b.sessions.Create(ctx, tx, sess); err != nil {
		return err
	}
	return b.users.AddTrafficDelta(ctx, tx, g.username, c.InputOctets, c.OutputOctets)
}
