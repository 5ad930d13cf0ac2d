package service

import (
	"context"
	"sync/atomic"

	"github.com/go-i2p/go-cbcservice/lib/dispatch"
	"github.com/go-i2p/go-cbcservice/lib/mailbox"
	"github.com/go-i2p/go-cbcservice/lib/metrics"
	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/go-i2p/go-cbcservice/lib/session"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Transport is the minimal substrate contract the loop depends on.
// *mailbox.Mailbox satisfies it.
type Transport interface {
	Poll() (mailbox.Envelope, bool)
	Wait(ctx context.Context) error
	Send(to mailbox.Identity, data []byte) error
}

// State is the loop state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "Processing"
	}
	return "Idle"
}

// Config holds loop options.
type Config struct {
	// MaxMessageSize rejects messages longer than this many bytes with
	// InvalidParam_SizeExceedAllowed. Zero disables the check.
	MaxMessageSize int
}

// Service is the single-threaded request loop.
type Service struct {
	transport  Transport
	dispatcher *dispatch.Dispatcher
	config     Config
	metrics    *metrics.Metrics
	state      atomic.Int32
}

// New creates a service loop. m may be nil.
func New(transport Transport, dispatcher *dispatch.Dispatcher, config Config, m *metrics.Metrics) *Service {
	log.WithFields(logger.Fields{
		"at":             "service.New",
		"maxMessageSize": config.MaxMessageSize,
	}).Debug("service_created")

	return &Service{
		transport:  transport,
		dispatcher: dispatcher,
		config:     config,
		metrics:    m,
	}
}

// State returns the current loop state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Run serves requests until ctx is done or the transport is closed.
func (s *Service) Run(ctx context.Context) error {
	log.WithField("at", "service.Run").Info("service_loop_started")

	for {
		if err := ctx.Err(); err != nil {
			return s.stopped(err)
		}

		env, ok := s.transport.Poll()
		if !ok {
			if err := s.transport.Wait(ctx); err != nil {
				return s.stopped(err)
			}
			continue
		}

		s.process(env)
	}
}

func (s *Service) stopped(err error) error {
	log.WithFields(logger.Fields{
		"at":     "service.Run",
		"reason": err.Error(),
	}).Info("service_loop_stopped")
	return err
}

// process handles one envelope: Idle -> Processing -> Idle.
func (s *Service) process(env mailbox.Envelope) {
	s.state.Store(int32(StateProcessing))
	defer s.state.Store(int32(StateIdle))

	if env.Disconnect {
		s.dispatcher.ReleaseOwner(session.OwnerID(env.Sender))
		return
	}

	resp := s.HandleMessage(session.OwnerID(env.Sender), env.Data)
	if resp == nil {
		return
	}

	if err := s.transport.Send(env.Sender, resp); err != nil {
		log.WithFields(logger.Fields{
			"at":     "service.process",
			"sender": env.Sender,
			"error":  err.Error(),
		}).Warn("failed_to_send_response")
	}
}

// HandleMessage validates and dispatches one raw message from sender and returns
// the encoded response.
func (s *Service) HandleMessage(sender session.OwnerID, data []byte) []byte {
	if len(data) <= protocol.HeaderSize {
		log.WithFields(logger.Fields{
			"at":       "service.HandleMessage",
			"sender":   sender,
			"received": len(data),
			"required": protocol.HeaderSize + 1,
		}).Warn("insufficient_message_length")
		s.metrics.RecordRejected(metrics.ReasonUndersized)
		return s.errorResponse(protocol.PeekOperation(data), protocol.StatusInvalidParamUnsufficientSize)
	}

	if s.config.MaxMessageSize > 0 && len(data) > s.config.MaxMessageSize {
		log.WithFields(logger.Fields{
			"at":         "service.HandleMessage",
			"sender":     sender,
			"received":   len(data),
			"maxAllowed": s.config.MaxMessageSize,
		}).Warn("message_size_exceeds_allowed")
		s.metrics.RecordRejected(metrics.ReasonOversized)
		return s.errorResponse(protocol.PeekOperation(data), protocol.StatusInvalidParamSizeExceedAllowed)
	}

	var req protocol.Message
	if err := req.UnmarshalBinary(data); err != nil {
		return s.errorResponse(protocol.PeekOperation(data), protocol.StatusInvalidParamUnsufficientSize)
	}

	resp := s.dispatcher.Dispatch(sender, &req)

	out, err := protocol.Encode(resp)
	if err != nil {
		return s.errorResponse(req.Operation, protocol.StatusInvalidOperation)
	}
	return out
}

func (s *Service) errorResponse(op protocol.Operation, status protocol.Status) []byte {
	out, err := protocol.Encode(protocol.NewErrorResponse(op, status))
	if err != nil {
		return nil
	}
	return out
}
