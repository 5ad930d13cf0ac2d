package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/mailbox"
	"github.com/go-i2p/go-cbcservice/lib/metrics"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/time/rate"
)

var log = logger.GetGoI2PLogger()

// ErrServerStopped is returned for a connection that finishes its handshake
// after Stop.
var ErrServerStopped = errors.New("transport server stopped")

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// Config holds socket listener settings.
type Config struct {
	// Network type: "tcp" or "unix"
	Network string

	// Address to listen on (e.g. "localhost:9464" or a socket path)
	Address string

	// Maximum number of concurrent connections
	MaxConnections int

	// Frames per second allowed on one connection, and the burst above it
	RateLimit float64
	RateBurst int

	// Largest frame accepted from a client
	MaxFrameSize int
}

// DefaultConfig returns a Config listening on a local TCP port.
func DefaultConfig() *Config {
	return &Config{
		Network:        "tcp",
		Address:        "localhost:9464",
		MaxConnections: 64,
		RateLimit:      1000,
		RateBurst:      100,
		MaxFrameSize:   DefaultMaxFrameSize,
	}
}

// connection is one accepted client. It is the mailbox receiver for its
// identity, so the service writes replies through Deliver.
type connection struct {
	id      mailbox.Identity
	conn    net.Conn
	limiter *rate.Limiter
	writeMu sync.Mutex
}

// Deliver implements mailbox.Receiver.
func (c *connection) Deliver(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return WriteFrame(c.conn, data)
}

// Server accepts socket clients and forwards their frames to a mailbox.
type Server struct {
	config  *Config
	mailbox *mailbox.Mailbox
	metrics *metrics.Metrics

	listener   net.Listener
	identities *identityPool
	active     atomic.Int32

	mu            sync.RWMutex
	running       bool
	authenticator Authenticator
	conns         map[mailbox.Identity]*connection

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server feeding mb. m may be nil.
func NewServer(config *Config, mb *mailbox.Mailbox, m *metrics.Metrics) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if mb == nil {
		return nil, oops.Errorf("mailbox is required")
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}

	log.WithFields(logger.Fields{
		"at":             "transport.NewServer",
		"network":        config.Network,
		"address":        config.Address,
		"maxConnections": config.MaxConnections,
	}).Info("creating_transport_server")

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:     config,
		mailbox:    mb,
		metrics:    m,
		identities: newIdentityPool(),
		conns:      make(map[mailbox.Identity]*connection),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// SetAuthenticator requires clients to present a secret accepted by auth.
// Pass nil to accept every client. Call before Start.
func (s *Server) SetAuthenticator(auth Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticator = auth

	if auth != nil {
		log.Info("transport_authentication_enabled")
	} else {
		log.Info("transport_authentication_disabled")
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return oops.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.config.Network == "unix" {
		removeStaleSocket(s.config.Address)
	}

	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return oops.Wrapf(err, "failed to listen on %s", s.config.Address)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.WithFields(logger.Fields{
		"at":      "transport.Server.Start",
		"network": s.config.Network,
		"address": listener.Addr().String(),
	}).Info("transport_server_started")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func removeStaleSocket(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return
	}
	if err := os.Remove(path); err != nil {
		log.WithFields(logger.Fields{
			"at":    "transport.removeStaleSocket",
			"path":  path,
			"error": err.Error(),
		}).Warn("failed_to_remove_stale_socket")
	}
}

// Stop closes the listener and every connection and waits for their
// goroutines to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	// register refuses new connections from here on, so the snapshot is complete.
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.WithError(err).Warn("error_closing_listener")
		}
	}

	for _, c := range conns {
		c.conn.Close()
	}

	s.wg.Wait()

	log.WithField("at", "transport.Server.Stop").Info("transport_server_stopped")
	return nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of connections being served.
func (s *Server) ConnectionCount() int {
	return int(s.active.Load())
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.handleAcceptError(err) {
				return
			}
			continue
		}

		log.WithFields(logger.Fields{
			"at":         "transport.Server.acceptLoop",
			"remoteAddr": conn.RemoteAddr().String(),
		}).Debug("new_connection")

		if s.shouldRejectConnection(conn) {
			continue
		}

		s.active.Add(1)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleAcceptError returns true when the accept loop should terminate.
func (s *Server) handleAcceptError(err error) bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	log.WithError(err).Error("failed_to_accept_connection")
	return false
}

func (s *Server) shouldRejectConnection(conn net.Conn) bool {
	if s.config.MaxConnections > 0 && s.ConnectionCount() >= s.config.MaxConnections {
		log.WithFields(logger.Fields{
			"at":             "transport.Server.shouldRejectConnection",
			"connections":    s.ConnectionCount(),
			"maxConnections": s.config.MaxConnections,
			"remoteAddr":     conn.RemoteAddr().String(),
		}).Warn("max_connections_reached_rejecting_connection")
		conn.Close()
		return true
	}
	return false
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.active.Add(-1)
	defer conn.Close()

	if !s.readHandshake(conn) {
		return
	}

	c, err := s.register(conn)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":         "transport.Server.handleConnection",
			"remoteAddr": conn.RemoteAddr().String(),
			"error":      err.Error(),
		}).Error("failed_to_register_connection")
		return
	}
	defer s.unregister(c)

	log.WithFields(logger.Fields{
		"at":         "transport.Server.handleConnection",
		"remoteAddr": conn.RemoteAddr().String(),
		"identity":   c.id,
	}).Info("client_connected")

	s.runConnectionLoop(c)
}

// readHandshake validates the version byte and secret. It answers the
// client in both cases and returns whether the connection may proceed.
func (s *Server) readHandshake(conn net.Conn) bool {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return false
	}
	hello, err := ReadFrame(conn, maxHandshakeSize)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":         "transport.Server.readHandshake",
			"remoteAddr": conn.RemoteAddr().String(),
			"error":      err.Error(),
		}).Error("failed_to_read_handshake")
		return false
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return false
	}

	if len(hello) == 0 || hello[0] != ProtocolVersion {
		received := "none"
		if len(hello) > 0 {
			received = fmt.Sprintf("0x%02x", hello[0])
		}
		log.WithFields(logger.Fields{
			"at":         "transport.Server.readHandshake",
			"remoteAddr": conn.RemoteAddr().String(),
			"expected":   fmt.Sprintf("0x%02x", ProtocolVersion),
			"received":   received,
		}).Error("invalid_protocol_version")
		WriteFrame(conn, []byte{handshakeRejected})
		return false
	}

	s.mu.RLock()
	auth := s.authenticator
	s.mu.RUnlock()

	if auth != nil && !auth.Authenticate(hello[1:]) {
		log.WithFields(logger.Fields{
			"at":         "transport.Server.readHandshake",
			"remoteAddr": conn.RemoteAddr().String(),
		}).Warn("client_rejected")
		WriteFrame(conn, []byte{handshakeRejected})
		return false
	}

	return WriteFrame(conn, []byte{handshakeAccepted}) == nil
}

func (s *Server) register(conn net.Conn) (*connection, error) {
	id, err := s.identities.acquire()
	if err != nil {
		return nil, err
	}

	c := &connection{
		id:      id,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(s.config.RateLimit), s.config.RateBurst),
	}
	if s.config.RateLimit <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	if err := s.mailbox.Register(id, c); err != nil {
		s.identities.release(id)
		return nil, err
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.mailbox.Unregister(id)
		s.identities.release(id)
		return nil, ErrServerStopped
	}
	s.conns[id] = c
	s.mu.Unlock()
	return c, nil
}

// unregister detaches c. The disconnect notice is queued before the identity
// returns to the pool, so the service releases c's sessions before any
// request from a later holder of the same identity.
func (s *Server) unregister(c *connection) {
	s.mailbox.Unregister(c.id)
	if err := s.mailbox.Disconnect(c.id); err != nil && !errors.Is(err, mailbox.ErrClosed) {
		log.WithFields(logger.Fields{
			"at":       "transport.Server.unregister",
			"identity": c.id,
			"error":    err.Error(),
		}).Warn("failed_to_queue_disconnect")
	}

	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	s.identities.release(c.id)

	log.WithFields(logger.Fields{
		"at":       "transport.Server.unregister",
		"identity": c.id,
	}).Debug("client_disconnected")
}

func (s *Server) runConnectionLoop(c *connection) {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		frame, err := ReadFrame(c.conn, s.config.MaxFrameSize)
		if err != nil {
			if !isClosedConnError(err) {
				log.WithFields(logger.Fields{
					"at":       "transport.Server.runConnectionLoop",
					"identity": c.id,
					"error":    err.Error(),
				}).Warn("failed_to_read_frame")
			}
			return
		}

		s.forward(c, frame)
	}
}

// forward posts one frame to the mailbox. Frames over the rate limit or
// arriving at a full queue are dropped.
func (s *Server) forward(c *connection, frame []byte) {
	if !c.limiter.Allow() {
		log.WithFields(logger.Fields{
			"at":       "transport.Server.forward",
			"identity": c.id,
		}).Warn("connection_rate_limit_exceeded")
		s.metrics.RecordRejected(metrics.ReasonRateLimit)
		return
	}

	if err := s.mailbox.Post(c.id, frame); err != nil {
		log.WithFields(logger.Fields{
			"at":       "transport.Server.forward",
			"identity": c.id,
			"error":    err.Error(),
		}).Warn("failed_to_queue_message")
		if errors.Is(err, mailbox.ErrQueueFull) {
			s.metrics.RecordRejected(metrics.ReasonQueueFull)
		}
	}
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
