// Package dispatcher runs the two UDP listeners — authentication and
// accounting — that front the RADIUS core, resolving each packet's
// NAS before handing it to the matching engine.
package dispatcher

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"log"
	"net"
	"strconv"

	"github.com/proisp/radiusd/internal/acctengine"
	"github.com/proisp/radiusd/internal/authengine"
	"github.com/proisp/radiusd/internal/logstore"
	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/nasregistry"
	"github.com/proisp/radiusd/internal/radiuserr"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

// Server owns the two layeh.com/radius PacketServers — one bound to
// the authentication port, one to the accounting port — and the
// shared NAS resolution used by both.
type Server struct {
	authAddr string
	acctAddr string

	registry   *nasregistry.Registry
	authEngine *authengine.Engine
	acctEngine *acctengine.Engine
	logs       *logstore.Store

	authSrv *radius.PacketServer
	acctSrv *radius.PacketServer

	logger *log.Logger
}

func New(bindAddress string, authPort, acctPort int, registry *nasregistry.Registry, authEngine *authengine.Engine, acctEngine *acctengine.Engine, logs *logstore.Store) *Server {
	return &Server{
		authAddr:   net.JoinHostPort(bindAddress, strconv.Itoa(authPort)),
		acctAddr:   net.JoinHostPort(bindAddress, strconv.Itoa(acctPort)),
		registry:   registry,
		authEngine: authEngine,
		acctEngine: acctEngine,
		logs:       logs,
		logger:     log.New(log.Writer(), "dispatcher: ", log.LstdFlags),
	}
}

// secretSource resolves the shared secret for a packet's source
// address, by looking up the NAS registered at that IP. This is the
// coarse, IP-only half of NAS resolution: it is what layeh.com/radius
// needs before it can verify the authenticator and decrypt
// User-Password at all. The finer-grained match against an optional
// NAS-Identifier attribute happens again, strictly, once the packet is
// decoded and the attribute is readable — see resolveNAS.
type secretSource struct {
	registry *nasregistry.Registry
}

func (s secretSource) RADIUSSecret(ctx context.Context, remoteAddr net.Addr) ([]byte, error) {
	ip := hostOf(remoteAddr)
	nas, err := s.registry.Find(ctx, ip, "")
	if err != nil {
		return nil, err
	}
	return nas.Secret(), nil
}

// Start binds and begins serving both ports. It returns once the
// listeners are up; serving itself runs on background goroutines.
func (s *Server) Start() error {
	secrets := secretSource{registry: s.registry}

	s.authSrv = &radius.PacketServer{
		Addr:         s.authAddr,
		Network:      "udp",
		SecretSource: secrets,
		Handler:      radius.HandlerFunc(s.handleAuth),
	}
	s.acctSrv = &radius.PacketServer{
		Addr:         s.acctAddr,
		Network:      "udp",
		SecretSource: secrets,
		Handler:      radius.HandlerFunc(s.handleAcct),
	}

	go func() {
		s.logger.Printf("authentication listening on %s", s.authAddr)
		if err := s.authSrv.ListenAndServe(); err != nil {
			s.logger.Printf("ERROR authentication listener stopped: %v", err)
		}
	}()
	go func() {
		s.logger.Printf("accounting listening on %s", s.acctAddr)
		if err := s.acctSrv.ListenAndServe(); err != nil {
			s.logger.Printf("ERROR accounting listener stopped: %v", err)
		}
	}()
	return nil
}

// Stop shuts both listeners down. It does not touch the Session
// Buffer — that is the scheduler's job, so a buffer flush always
// happens after the sockets that feed it have gone quiet.
func (s *Server) Stop(ctx context.Context) {
	if s.authSrv != nil {
		if err := s.authSrv.Shutdown(ctx); err != nil {
			s.logger.Printf("ERROR shutting down authentication listener: %v", err)
		}
	}
	if s.acctSrv != nil {
		if err := s.acctSrv.Shutdown(ctx); err != nil {
			s.logger.Printf("ERROR shutting down accounting listener: %v", err)
		}
	}
}

func (s *Server) handleAuth(w radius.ResponseWriter, r *radius.Request) {
	if r.Packet.Code != radius.CodeAccessRequest {
		s.logger.Printf("WARNING unexpected code %d on authentication port from %s, dropping", r.Packet.Code, r.RemoteAddr)
		return
	}
	nas, ok := s.resolveNAS(r)
	if !ok {
		return
	}
	s.authEngine.Handle(context.Background(), w, r, nas)
}

func (s *Server) handleAcct(w radius.ResponseWriter, r *radius.Request) {
	if r.Packet.Code != radius.CodeAccountingRequest {
		s.logger.Printf("WARNING unexpected code %d on accounting port from %s, dropping", r.Packet.Code, r.RemoteAddr)
		return
	}
	nas, ok := s.resolveNAS(r)
	if !ok {
		return
	}
	if err := verifyAccountingAuthenticator(r.Packet); err != nil {
		s.logger.Printf("WARNING %v from nas_ip=%s, dropping", err, nas.IPAddress)
		s.logs.Logf(context.Background(), "WARNING", "dispatcher", "%v from nas_ip=%s, dropping packet", err, nas.IPAddress)
		return
	}
	s.acctEngine.Handle(context.Background(), w, r, nas)
}

// verifyAccountingAuthenticator checks the Accounting-Request Request
// Authenticator per RFC 2866 §4.1: it must equal
// MD5(Code+Identifier+Length+16 zero octets+Attributes+Secret). The
// attribute bytes are taken from re-encoding the already-decoded
// packet, which reproduces the wire bytes layeh.com/radius parsed them
// from; only the header is rebuilt by hand so the authenticator field
// itself is hashed as zeroes rather than whatever Encode would put
// there for this packet's code.
func verifyAccountingAuthenticator(p *radius.Packet) error {
	encoded, err := p.Encode()
	if err != nil || len(encoded) < 20 {
		return radiuserr.ErrBadAuthenticator
	}
	attrs := encoded[20:]
	length := 20 + len(attrs)

	h := md5.New()
	h.Write([]byte{byte(p.Code), byte(p.Identifier), byte(length >> 8), byte(length)})
	h.Write(make([]byte, 16))
	h.Write(attrs)
	h.Write(p.Secret)
	sum := h.Sum(nil)

	if subtle.ConstantTimeCompare(sum, p.Authenticator[:]) != 1 {
		return radiuserr.ErrBadAuthenticator
	}
	return nil
}

// resolveNAS re-derives the authoritative NASClient for the decoded
// packet, now that its NAS-Identifier attribute (if any) is readable.
// A mismatch here — an identifier that does not match the secret
// already used to decode the packet — is silently dropped: no reply
// is ever sent for an unresolved NAS, so the port cannot be used to
// probe which (ip, identifier) pairs are registered.
func (s *Server) resolveNAS(r *radius.Request) (*models.NASClient, bool) {
	ip := hostOf(r.RemoteAddr)
	identifier := rfc2865.NASIdentifier_GetString(r.Packet)
	nas, err := s.registry.Find(context.Background(), ip, identifier)
	if err != nil {
		s.logger.Printf("WARNING unresolved nas ip=%s identifier=%q, dropping", ip, identifier)
		s.logs.Logf(context.Background(), "WARNING", "dispatcher", "unresolved nas ip=%s identifier=%q, dropping packet", ip, identifier)
		return nil, false
	}
	return nas, true
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
