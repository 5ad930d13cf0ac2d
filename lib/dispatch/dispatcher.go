// Package dispatch maps decoded requests onto the session table and the
// cipher, producing exactly one response per request.
//
// Every handler validates fully before it mutates anything, so a failed
// request leaves the session table exactly as it found it.
package dispatch

import (
	"github.com/go-i2p/go-cbcservice/lib/cipher"
	"github.com/go-i2p/go-cbcservice/lib/metrics"
	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/go-i2p/go-cbcservice/lib/session"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Dispatcher handles requests against an injected session table.
// It is not safe for concurrent use.
type Dispatcher struct {
	table   *session.Table
	metrics *metrics.Metrics
}

// New creates a dispatcher over table. m may be nil.
func New(table *session.Table, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{table: table, metrics: m}
}

// Dispatch handles one request from sender and returns the response to send back.
func (d *Dispatcher) Dispatch(sender session.OwnerID, req *protocol.Message) *protocol.Message {
	log.WithFields(logger.Fields{
		"at":          "dispatch.Dispatch",
		"sender":      sender,
		"operation":   req.Operation.String(),
		"payloadSize": len(req.Payload),
	}).Debug("processing_request")

	var resp *protocol.Message
	switch req.Operation {
	case protocol.OpInit:
		resp = d.handleInit(sender, req)
	case protocol.OpDeinit:
		resp = d.handleDeinit(sender, req)
	case protocol.OpEncrypt, protocol.OpDecrypt:
		resp = d.handleBlock(sender, req)
	default:
		log.WithFields(logger.Fields{
			"at":          "dispatch.Dispatch",
			"sender":      sender,
			"operation":   req.Operation.String(),
			"operationID": uint16(req.Operation),
		}).Warn("unsupported_operation")
		resp = protocol.NewErrorResponse(req.Operation, protocol.StatusInvalidOperation)
	}

	d.metrics.RecordRequest(req.Operation.String(), resp.Status.String())
	d.metrics.SetActiveSessions(d.table.Len())

	return resp
}

// ReleaseOwner drops every session held by a caller that has gone away, so a
// later caller given the same identity cannot reach them.
func (d *Dispatcher) ReleaseOwner(owner session.OwnerID) int {
	released := d.table.ReleaseOwner(owner)
	if released > 0 {
		log.WithFields(logger.Fields{
			"at":       "dispatch.ReleaseOwner",
			"owner":    owner,
			"released": released,
			"live":     d.table.Len(),
		}).Info("abandoned_sessions_released")
	}
	d.metrics.SetActiveSessions(d.table.Len())
	return released
}

// handleInit allocates a slot and keys it with the caller's key and IV.
func (d *Dispatcher) handleInit(sender session.OwnerID, req *protocol.Message) *protocol.Message {
	if d.table.Full() {
		log.WithFields(logger.Fields{
			"at":       "dispatch.handleInit",
			"sender":   sender,
			"capacity": d.table.Cap(),
		}).Warn("no_session_slot_available")
		return protocol.NewErrorResponse(req.Operation, protocol.StatusNoSessionSlotAvailable)
	}

	params, err := protocol.ParseInit(req.Payload)
	if err != nil {
		return d.shortPayload(sender, req, protocol.InitPayloadSize)
	}

	index, state, err := d.table.Allocate(sender)
	if err != nil {
		return protocol.NewErrorResponse(req.Operation, protocol.StatusNoSessionSlotAvailable)
	}

	if err := state.Initialize(params.Key[:], params.IV[:]); err != nil {
		d.table.Release(index)
		log.WithFields(logger.Fields{
			"at":     "dispatch.handleInit",
			"sender": sender,
			"error":  err.Error(),
		}).Error("failed_to_initialize_cipher")
		return protocol.NewErrorResponse(req.Operation, protocol.StatusInvalidOperation)
	}

	handle := session.Encode(sender, index)

	log.WithFields(logger.Fields{
		"at":     "dispatch.handleInit",
		"sender": sender,
		"handle": handle.String(),
		"live":   d.table.Len(),
	}).Info("session_created")

	return protocol.NewResponse(req.Operation, protocol.HandlePayload(uint32(handle)))
}

// handleDeinit releases the session addressed by the request handle.
func (d *Dispatcher) handleDeinit(sender session.OwnerID, req *protocol.Message) *protocol.Message {
	raw, err := protocol.ParseHandle(req.Payload)
	if err != nil {
		return d.shortPayload(sender, req, protocol.DeinitPayloadSize)
	}

	handle := session.Handle(raw)
	index, _, status := d.lookup(sender, handle)
	if status != protocol.StatusSuccess {
		return protocol.NewErrorResponse(req.Operation, status)
	}

	d.table.Release(index)

	log.WithFields(logger.Fields{
		"at":     "dispatch.handleDeinit",
		"sender": sender,
		"handle": handle.String(),
		"live":   d.table.Len(),
	}).Info("session_destroyed")

	return protocol.NewResponse(req.Operation, nil)
}

// handleBlock encrypts or decrypts exactly one block with the session's chaining state.
func (d *Dispatcher) handleBlock(sender session.OwnerID, req *protocol.Message) *protocol.Message {
	params, err := protocol.ParseBlockRequest(req.Payload)
	if err != nil {
		return d.shortPayload(sender, req, protocol.BlockPayloadSize)
	}

	handle := session.Handle(params.Handle)
	_, state, status := d.lookup(sender, handle)
	if status != protocol.StatusSuccess {
		return protocol.NewErrorResponse(req.Operation, status)
	}

	var out cipher.Block
	if req.Operation == protocol.OpEncrypt {
		out = state.EncryptBlock(params.Block)
	} else {
		out = state.DecryptBlock(params.Block)
	}

	log.WithFields(logger.Fields{
		"at":        "dispatch.handleBlock",
		"sender":    sender,
		"handle":    handle.String(),
		"operation": req.Operation.String(),
	}).Debug("block_processed")

	return protocol.NewResponse(req.Operation, out[:])
}

// lookup decodes handle and validates it against the sender's identity. The
// decoded owner must be the sender and the slot must be live and owned by it.
func (d *Dispatcher) lookup(sender session.OwnerID, handle session.Handle) (int, *cipher.State, protocol.Status) {
	owner, index := session.Decode(handle)
	if owner != sender {
		log.WithFields(logger.Fields{
			"at":     "dispatch.lookup",
			"sender": sender,
			"handle": handle.String(),
			"reason": "owner_mismatch",
		}).Warn("invalid_session")
		return -1, nil, protocol.StatusInvalidSession
	}

	state, err := d.table.Validate(owner, index)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":     "dispatch.lookup",
			"sender": sender,
			"handle": handle.String(),
			"reason": err.Error(),
		}).Warn("invalid_session")
		return -1, nil, protocol.StatusInvalidSession
	}

	return index, state, protocol.StatusSuccess
}

func (d *Dispatcher) shortPayload(sender session.OwnerID, req *protocol.Message, want int) *protocol.Message {
	log.WithFields(logger.Fields{
		"at":        "dispatch.shortPayload",
		"sender":    sender,
		"operation": req.Operation.String(),
		"got":       len(req.Payload),
		"want":      want,
	}).Warn("payload_too_short")
	return protocol.NewErrorResponse(req.Operation, protocol.StatusInvalidParamUnsufficientSize)
}
