// Package stats derives campaign rollups and segment counts from stored
// records. Recompute is idempotent; it is safe to call redundantly.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

// Events receives rollup updates for dashboard fan-out. Satisfied by
// *ws.Hub; may be nil.
type Events interface {
	BroadcastEvent(eventType string, data interface{})
}

// Rollup is the aggregate view over one campaign's message logs. Counts
// are cumulative: a message that reached Read also counts as sent and
// delivered.
type Rollup struct {
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Read         int     `json:"read"`
	Failed       int     `json:"failed"`
	DeliveryRate float64 `json:"delivery_rate"`
	ReadRate     float64 `json:"read_rate"`
}

type Aggregator struct {
	store  store.Store
	events Events
	now    func() time.Time
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s, now: time.Now}
}

// SetEvents attaches a broadcast sink for recomputed rollups.
func (a *Aggregator) SetEvents(events Events) {
	a.events = events
}

// Recompute rebuilds a campaign's counters from its message logs and
// persists them on the campaign row.
func (a *Aggregator) Recompute(ctx context.Context, campaignID string) (*Rollup, error) {
	campaign, err := a.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := a.store.CountCampaignMessagesByStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	rollup := rollupFromCounts(counts)

	campaign.MessagesSent = rollup.Sent
	campaign.MessagesDelivered = rollup.Delivered
	campaign.MessagesRead = rollup.Read
	campaign.MessagesFailed = rollup.Failed
	campaign.DeliveryRate = rollup.DeliveryRate
	campaign.ReadRate = rollup.ReadRate
	if err := a.store.SaveCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	if a.events != nil {
		a.events.BroadcastEvent("campaign_stats", map[string]interface{}{
			"campaign_id": campaignID,
			"stats":       rollup,
		})
	}
	return &rollup, nil
}

func rollupFromCounts(counts map[string]int64) Rollup {
	read := int(counts[models.StatusRead])
	delivered := int(counts[models.StatusDelivered]) + read
	sent := int(counts[models.StatusSent]) + delivered

	rollup := Rollup{
		Sent:      sent,
		Delivered: delivered,
		Read:      read,
		Failed:    int(counts[models.StatusFailed]),
	}
	if sent > 0 {
		rollup.DeliveryRate = float64(delivered) / float64(sent) * 100
		rollup.ReadRate = float64(read) / float64(sent) * 100
	}
	return rollup
}

// SweepCampaigns recomputes every Running campaign. Scheduler entry point.
func (a *Aggregator) SweepCampaigns(ctx context.Context) {
	campaigns, err := a.store.FindCampaignsByStatus(ctx, models.CampaignRunning)
	if err != nil {
		log.Error().Err(err).Msg("stats sweep: listing running campaigns")
		return
	}
	for _, campaign := range campaigns {
		if _, err := a.Recompute(ctx, campaign.ID); err != nil {
			log.Error().Err(err).Str("campaign", campaign.ID).Msg("stats sweep: recompute")
		}
	}
}

// RefreshSegment recomputes a segment's cached contact count.
func (a *Aggregator) RefreshSegment(ctx context.Context, segmentID string) (int, error) {
	segment, err := a.store.GetSegment(ctx, segmentID)
	if err != nil {
		return 0, err
	}
	filter, err := store.ParseContactFilter(segment.FilterConditions)
	if err != nil {
		return 0, err
	}
	contacts, err := a.store.FindContacts(ctx, filter)
	if err != nil {
		return 0, err
	}

	now := a.now()
	segment.ContactCount = len(contacts)
	segment.LastUpdated = &now
	if err := a.store.SaveSegment(ctx, segment); err != nil {
		return 0, err
	}
	return len(contacts), nil
}

// SweepSegments refreshes every auto-updating segment. Scheduler entry point.
func (a *Aggregator) SweepSegments(ctx context.Context) {
	segments, err := a.store.FindAutoUpdateSegments(ctx)
	if err != nil {
		log.Error().Err(err).Msg("segment sweep: listing segments")
		return
	}
	for _, segment := range segments {
		if _, err := a.RefreshSegment(ctx, segment.ID); err != nil {
			log.Error().Err(err).Str("segment", segment.ID).Msg("segment sweep: refresh")
		}
	}
}
