// Package campaign drives bulk-send jobs: it fans a segment's contacts
// out through the dispatch queue and owns the campaign status lifecycle
// (Draft → Running → Paused/Completed/Failed).
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/dispatch"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/ratelimit"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/template"
)

// Dispatcher is the slice of the dispatch queue the orchestrator needs.
type Dispatcher interface {
	Enqueue(ctx context.Context, req dispatch.Request) (string, error)
}

type Orchestrator struct {
	store   store.Store
	queue   Dispatcher
	limiter *ratelimit.Limiter

	// Now is the status-transition clock; overridable in tests.
	Now func() time.Time
}

func NewOrchestrator(s store.Store, queue Dispatcher, limiter *ratelimit.Limiter) *Orchestrator {
	return &Orchestrator{store: s, queue: queue, limiter: limiter, Now: time.Now}
}

// Start moves a Draft or Paused campaign to Running and enqueues one
// message per segment contact. Enqueue failures for individual contacts
// are logged and do not abort the batch. A failure before the fan-out
// begins marks the campaign Failed and is surfaced to the caller.
func (o *Orchestrator) Start(ctx context.Context, campaignID string) error {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign.Status != models.CampaignDraft && campaign.Status != models.CampaignPaused {
		return fmt.Errorf("campaign %s cannot start from status %s", campaign.ID, campaign.Status)
	}

	conn, err := o.store.GetConnection(ctx, campaign.ConnectionID)
	if err != nil {
		return fmt.Errorf("loading connection: %w", err)
	}
	if conn.Status != models.ConnectionConnected {
		return errors.New("WhatsApp connection is not active")
	}
	if allowed, reason := o.limiter.Authorize(conn); !allowed {
		return errors.New(reason)
	}

	now := o.Now()
	campaign.Status = models.CampaignRunning
	campaign.StartedAt = &now
	campaign.ErrorMessage = ""
	if err := o.store.SaveCampaign(ctx, campaign); err != nil {
		return err
	}

	segment, err := o.store.GetSegment(ctx, campaign.TargetSegment)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("loading segment: %w", err))
	}
	tmpl, err := o.store.GetTemplate(ctx, campaign.MessageTemplate)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("loading template: %w", err))
	}
	filter, err := store.ParseContactFilter(segment.FilterConditions)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("parsing segment filter: %w", err))
	}
	contacts, err := o.store.FindContacts(ctx, filter)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("resolving segment contacts: %w", err))
	}

	campaign.TotalContacts = len(contacts)
	if err := o.store.SaveCampaign(ctx, campaign); err != nil {
		return err
	}

	queued := 0
	for i := range contacts {
		contact := &contacts[i]

		// Re-read status so a concurrent pause/stop halts the fan-out
		// before the next enqueue. Already-submitted messages proceed.
		current, err := o.store.GetCampaign(ctx, campaign.ID)
		if err == nil && current.Status != models.CampaignRunning {
			log.Info().Str("campaign", campaign.ID).Str("status", current.Status).
				Int("queued", queued).Msg("campaign fan-out halted")
			return nil
		}

		context := map[string]string{
			"name":  contact.Name,
			"phone": contact.PhoneNumber,
		}
		_, err = o.queue.Enqueue(ctx, dispatch.Request{
			Connection:  conn,
			Recipient:   contact.PhoneNumber,
			Payload:     template.BuildMessage(tmpl, context),
			MessageType: tmpl.TemplateType,
			Content:     template.Render(tmpl.Content, context),
			MediaURL:    tmpl.MediaURL,
			CampaignID:  campaign.ID,
			TemplateID:  tmpl.ID,
		})
		if err != nil {
			log.Warn().Err(err).Str("campaign", campaign.ID).Str("contact", contact.PhoneNumber).
				Msg("enqueueing campaign message")
			continue
		}
		queued++
	}

	log.Info().Str("campaign", campaign.ID).Int("queued", queued).Int("total", len(contacts)).
		Msg("campaign started")
	return nil
}

// Pause moves a Running campaign to Paused. Messages already handed to
// the transport are not retracted.
func (o *Orchestrator) Pause(ctx context.Context, campaignID string) error {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign.Status != models.CampaignRunning {
		return fmt.Errorf("campaign %s cannot pause from status %s", campaign.ID, campaign.Status)
	}
	campaign.Status = models.CampaignPaused
	return o.store.SaveCampaign(ctx, campaign)
}

// Resume moves a Paused campaign back to Running. The same preconditions
// as Start apply; it does not re-enqueue messages.
func (o *Orchestrator) Resume(ctx context.Context, campaignID string) error {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign.Status != models.CampaignPaused {
		return fmt.Errorf("campaign %s cannot resume from status %s", campaign.ID, campaign.Status)
	}
	conn, err := o.store.GetConnection(ctx, campaign.ConnectionID)
	if err != nil {
		return fmt.Errorf("loading connection: %w", err)
	}
	if conn.Status != models.ConnectionConnected {
		return errors.New("WhatsApp connection is not active")
	}
	if allowed, reason := o.limiter.Authorize(conn); !allowed {
		return errors.New(reason)
	}
	campaign.Status = models.CampaignRunning
	return o.store.SaveCampaign(ctx, campaign)
}

// Stop marks a Running or Paused campaign Completed.
func (o *Orchestrator) Stop(ctx context.Context, campaignID string) error {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign.Status != models.CampaignRunning && campaign.Status != models.CampaignPaused {
		return fmt.Errorf("campaign %s cannot stop from status %s", campaign.ID, campaign.Status)
	}
	now := o.Now()
	campaign.Status = models.CampaignCompleted
	campaign.CompletedAt = &now
	return o.store.SaveCampaign(ctx, campaign)
}

// StartDue starts every Scheduled draft campaign whose schedule time has
// passed. Scheduler entry point.
func (o *Orchestrator) StartDue(ctx context.Context) {
	campaigns, err := o.store.FindDueScheduledCampaigns(ctx, o.Now())
	if err != nil {
		log.Error().Err(err).Msg("listing due scheduled campaigns")
		return
	}
	for _, campaign := range campaigns {
		if err := o.Start(ctx, campaign.ID); err != nil {
			log.Error().Err(err).Str("campaign", campaign.ID).Msg("starting scheduled campaign")
		}
	}
}

// fail records a terminal Failed status plus the error on the campaign,
// then surfaces the error to the caller.
func (o *Orchestrator) fail(ctx context.Context, campaign *models.Campaign, cause error) error {
	campaign.Status = models.CampaignFailed
	campaign.ErrorMessage = cause.Error()
	if err := o.store.SaveCampaign(ctx, campaign); err != nil {
		log.Error().Err(err).Str("campaign", campaign.ID).Msg("saving failed campaign status")
	}
	return cause
}
