// Package delivery owns the lifecycle of outbound message logs. It is the
// only component that mutates a MessageLog after creation.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/stats"
	"whatsapp-dispatch/internal/store"
)

// ErrInvalidTransition is returned when a target status is not a valid
// successor of the current status. The original state is preserved.
var ErrInvalidTransition = errors.New("invalid status transition")

// successors maps each non-terminal outbound status to its valid targets.
// Read and Failed are terminal; Received (inbound) never transitions.
var successors = map[string][]string{
	models.StatusQueued:    {models.StatusSent, models.StatusFailed},
	models.StatusSent:      {models.StatusDelivered, models.StatusFailed},
	models.StatusDelivered: {models.StatusRead},
}

// Metadata carries per-transition extras: the transport-assigned message
// id on Sent, the error text on Failed.
type Metadata struct {
	MessageID    string
	ErrorMessage string
}

// Events receives status-change notifications. Satisfied by *ws.Hub; may
// be nil.
type Events interface {
	BroadcastEvent(eventType string, data interface{})
}

type Engine struct {
	store  store.Store
	stats  *stats.Aggregator
	events Events

	// Now is the transition clock; overridable in tests.
	Now func() time.Time
}

func NewEngine(s store.Store, aggregator *stats.Aggregator) *Engine {
	return &Engine{store: s, stats: aggregator, Now: time.Now}
}

func (e *Engine) SetEvents(events Events) {
	e.events = events
}

// ApplyByID resolves a message log and applies a transition. Webhook entry
// point for transport status callbacks.
func (e *Engine) ApplyByID(ctx context.Context, messageLogID, target string, meta Metadata) error {
	msgLog, err := e.store.GetMessageLog(ctx, messageLogID)
	if err != nil {
		return err
	}
	return e.Apply(ctx, msgLog, target, meta)
}

// Apply advances a message log to the target status. Re-applying the
// current status is a no-op; any other non-successor target is rejected
// with ErrInvalidTransition. Every accepted transition stamps its
// timestamp, updates contact statistics, and triggers a campaign rollup
// recompute when the message belongs to a campaign.
func (e *Engine) Apply(ctx context.Context, msgLog *models.MessageLog, target string, meta Metadata) error {
	if msgLog.Status == target {
		return nil
	}
	if !validSuccessor(msgLog.Status, target) {
		return fmt.Errorf("%w: %s -> %s (message %s)", ErrInvalidTransition, msgLog.Status, target, msgLog.ID)
	}

	now := e.Now()
	switch target {
	case models.StatusSent:
		msgLog.SentAt = &now
		if meta.MessageID != "" {
			msgLog.MessageID = meta.MessageID
		}
	case models.StatusDelivered:
		msgLog.DeliveredAt = &now
	case models.StatusRead:
		msgLog.ReadAt = &now
	case models.StatusFailed:
		msgLog.FailedAt = &now
		msgLog.ErrorMessage = meta.ErrorMessage
		if msgLog.ErrorMessage == "" {
			msgLog.ErrorMessage = "Unknown error"
		}
	}
	msgLog.Status = target

	if err := e.store.SaveMessageLog(ctx, msgLog); err != nil {
		return err
	}

	e.updateContactStats(ctx, msgLog, target, now)

	if msgLog.CampaignID != "" {
		if _, err := e.stats.Recompute(ctx, msgLog.CampaignID); err != nil {
			log.Error().Err(err).Str("campaign", msgLog.CampaignID).Msg("recomputing campaign stats")
		}
	}

	if e.events != nil {
		e.events.BroadcastEvent("message_status", msgLog)
	}
	return nil
}

func validSuccessor(current, target string) bool {
	for _, s := range successors[current] {
		if s == target {
			return true
		}
	}
	return false
}

// updateContactStats records last-message metadata on every transition and
// increments the sent counter once, on the transition into Sent. Failures
// here are logged, not surfaced; the transition itself already committed.
func (e *Engine) updateContactStats(ctx context.Context, msgLog *models.MessageLog, target string, now time.Time) {
	contact, err := e.store.GetContact(ctx, msgLog.Contact)
	if err != nil {
		log.Error().Err(err).Str("contact", msgLog.Contact).Msg("loading contact for stats update")
		return
	}
	contact.LastMessageDate = &now
	contact.LastMessageType = msgLog.MessageType
	if target == models.StatusSent {
		contact.TotalMessagesSent++
	}
	if err := e.store.SaveContact(ctx, contact); err != nil {
		log.Error().Err(err).Str("contact", msgLog.Contact).Msg("saving contact stats")
	}
}
