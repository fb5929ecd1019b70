// Package authengine applies the authentication decision to a decoded
// Access-Request and produces an Access-Accept or Access-Reject.
package authengine

import (
	"context"
	"fmt"
	"log"

	"github.com/proisp/radiusd/internal/logstore"
	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/radiuserr"
	"github.com/proisp/radiusd/internal/sessionbuffer"
	"github.com/proisp/radiusd/internal/userstore"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2869"
)

// These Reason* constants map each reject condition to the exact wording
// spec.md §7's fixed table requires; the same string is used in the reply
// Reply-Message AVP and in the log line.
const (
	ReasonInvalidCredentials = "Invalid credentials"
	ReasonAccountDisabled    = "Account is disabled"
	ReasonAccountExpired     = "Account has expired"
	ReasonOverQuota          = "Traffic limit reached"
	ReasonMissingUsername    = "Missing username"
	ReasonMissingPassword    = "Missing password"
)

func reasonTooManySessions(max int) string {
	return fmt.Sprintf("Maximum concurrent sessions (%d) reached", max)
}

type Engine struct {
	users               *userstore.Store
	buffer              *sessionbuffer.Buffer
	logs                *logstore.Store
	acctInterimInterval uint32
	logger              *log.Logger
}

func New(users *userstore.Store, buffer *sessionbuffer.Buffer, logs *logstore.Store, acctInterimInterval int) *Engine {
	return &Engine{
		users:               users,
		buffer:              buffer,
		logs:                logs,
		acctInterimInterval: uint32(acctInterimInterval),
		logger:              log.New(log.Writer(), "authengine: ", log.LstdFlags),
	}
}

// Handle decides an Access-Request and writes the Access-Accept or
// Access-Reject reply. nas is the already-resolved NASClient for the
// packet's source, used only for logging here (its secret was already
// used to decode User-Password).
func (e *Engine) Handle(ctx context.Context, w radius.ResponseWriter, r *radius.Request, nas *models.NASClient) {
	username := rfc2865.UserName_GetString(r.Packet)
	password := rfc2865.UserPassword_GetString(r.Packet)

	outcome, reason := e.decide(ctx, username, password)

	if outcome == accept {
		e.logDecision(username, nas, "accept", "")
		e.writeAccept(w, r)
		return
	}

	e.logDecision(username, nas, "reject", reason)
	e.writeReject(w, r, reason)
}

type decision int

const (
	reject decision = iota
	accept
)

func (e *Engine) decide(ctx context.Context, username, password string) (decision, string) {
	if username == "" {
		return reject, ReasonMissingUsername
	}
	if password == "" {
		return reject, ReasonMissingPassword
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		return reject, ReasonInvalidCredentials
	}

	if !userstore.CheckPassword(user, password) {
		return reject, ReasonInvalidCredentials
	}

	if err := userstore.CanAuthenticate(user); err != nil {
		switch err {
		case radiuserr.ErrAccountDisabled:
			return reject, ReasonAccountDisabled
		case radiuserr.ErrAccountExpired:
			return reject, ReasonAccountExpired
		case radiuserr.ErrOverQuota:
			return reject, ReasonOverQuota
		default:
			return reject, ReasonInvalidCredentials
		}
	}

	pending := e.buffer.PendingActiveCountForUser(username)
	if !userstore.PendingAwareConcurrencyOK(user, pending) {
		return reject, reasonTooManySessions(user.MaxConcurrentSessions)
	}

	return accept, ""
}

func (e *Engine) writeAccept(w radius.ResponseWriter, r *radius.Request) {
	resp := r.Response(radius.CodeAccessAccept)
	rfc2865.ReplyMessage_SetString(resp, "Authentication successful")
	rfc2865.ServiceType_Set(resp, rfc2865.ServiceType_Value_Framed)
	rfc2865.FramedProtocol_Set(resp, rfc2865.FramedProtocol_Value_PPP)
	rfc2869.AcctInterimInterval_Set(resp, rfc2869.AcctInterimInterval(e.acctInterimInterval))
	if err := w.Write(resp); err != nil {
		e.logger.Printf("ERROR writing access-accept: %v", err)
	}
}

func (e *Engine) writeReject(w radius.ResponseWriter, r *radius.Request, reason string) {
	resp := r.Response(radius.CodeAccessReject)
	rfc2865.ReplyMessage_SetString(resp, reason)
	if err := w.Write(resp); err != nil {
		e.logger.Printf("ERROR writing access-reject: %v", err)
	}
}

func (e *Engine) logDecision(username string, nas *models.NASClient, outcome, reason string) {
	nasName, nasIP := "", ""
	if nas != nil {
		nasName, nasIP = nas.Identifier, nas.IPAddress
	}
	e.logger.Printf("user=%s nas=%s nas_ip=%s outcome=%s reason=%q", username, nasName, nasIP, outcome, reason)
	level := "INFO"
	if outcome == "reject" {
		level = "WARNING"
	}
	e.logs.Logf(context.Background(), level, "authengine", "user=%s nas=%s nas_ip=%s outcome=%s reason=%q", username, nasName, nasIP, outcome, reason)
}
