// Package dispatch turns a (connection, recipient, payload) tuple into a
// durable message log plus an externally queued send request.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/delivery"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/ratelimit"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/template"
	"whatsapp-dispatch/internal/transport"
)

// Transport is the slice of the external service this package needs.
// Satisfied by *transport.Client.
type Transport interface {
	QueueMessage(ctx context.Context, req transport.QueueMessageRequest) error
}

// Request describes one outbound message to hand off.
type Request struct {
	Connection  *models.Connection
	Recipient   string // canonical phone number
	Payload     template.Payload
	MessageType string
	Content     string
	MediaURL    string
	CampaignID  string
	TemplateID  string
}

type Queue struct {
	store     store.Store
	transport Transport
	limiter   *ratelimit.Limiter
	delivery  *delivery.Engine
}

func NewQueue(s store.Store, t Transport, limiter *ratelimit.Limiter, engine *delivery.Engine) *Queue {
	return &Queue{store: s, transport: t, limiter: limiter, delivery: engine}
}

// Enqueue authorizes the send, persists a Queued message log, and submits
// it to the transport. The log is created before the external call so a
// durable record exists even when the hand-off fails. On transport failure
// the log transitions to Failed and the returned id identifies it; the
// rate-limit counters are only charged for acknowledged hand-offs.
//
// Authorization re-reads the connection's stored counters rather than
// trusting the caller's snapshot: a long campaign fan-out holds one
// Connection struct for thousands of sends, and a stale snapshot would
// keep passing the check long after the caps were reached.
func (q *Queue) Enqueue(ctx context.Context, req Request) (string, error) {
	conn, err := q.store.GetConnection(ctx, req.Connection.ID)
	if err != nil {
		return "", fmt.Errorf("loading connection: %w", err)
	}
	allowed, reason := q.limiter.Authorize(conn)
	if !allowed {
		return "", fmt.Errorf("%w: %s", ratelimit.ErrLimitExceeded, reason)
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	msgLog := &models.MessageLog{
		ID:           uuid.NewString(),
		ConnectionID: req.Connection.ID,
		Contact:      req.Recipient,
		Direction:    models.DirectionOutbound,
		MessageType:  msgType,
		Content:      req.Content,
		MediaURL:     req.MediaURL,
		Status:       models.StatusQueued,
		CampaignID:   req.CampaignID,
		TemplateID:   req.TemplateID,
	}
	if err := q.store.SaveMessageLog(ctx, msgLog); err != nil {
		return "", fmt.Errorf("creating message log: %w", err)
	}

	err = q.transport.QueueMessage(ctx, transport.QueueMessageRequest{
		ConnectionID: req.Connection.ID,
		MessageLogID: msgLog.ID,
		Recipient:    req.Recipient,
		Message:      req.Payload,
		CampaignID:   req.CampaignID,
	})
	if err != nil {
		if applyErr := q.delivery.Apply(ctx, msgLog, models.StatusFailed, delivery.Metadata{
			ErrorMessage: err.Error(),
		}); applyErr != nil {
			log.Error().Err(applyErr).Str("message_log", msgLog.ID).Msg("marking message failed")
		}
		return msgLog.ID, err
	}

	if err := q.limiter.RecordSent(ctx, req.Connection.ID); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			// A concurrent sender consumed the last slot between our
			// authorize and increment. The message is already handed off
			// and cannot be retracted; the counter simply stays capped.
			log.Warn().Str("connection", req.Connection.ID).Msg("send counter already at limit")
		} else {
			log.Error().Err(err).Str("connection", req.Connection.ID).Msg("recording sent message")
		}
	}
	return msgLog.ID, nil
}
