package stats

import (
	"context"
	"errors"
	"math"
	"testing"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

func seedCampaignLogs(t *testing.T, st *store.Memory, campaignID string, statuses []string) {
	t.Helper()
	ctx := context.Background()
	for i, status := range statuses {
		err := st.SaveMessageLog(ctx, &models.MessageLog{
			ID:         campaignID + "-" + string(rune('a'+i)),
			Contact:    "+4915551234",
			Direction:  models.DirectionOutbound,
			Status:     status,
			CampaignID: campaignID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 0.01
}

func TestRecomputeCumulativeCounts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})

	// One message went the full chain, one stopped at delivered, one at
	// sent, one failed. A read message still counts as sent and delivered.
	seedCampaignLogs(t, st, "camp-1", []string{
		models.StatusRead,
		models.StatusDelivered,
		models.StatusSent,
		models.StatusFailed,
	})

	rollup, err := NewAggregator(st).Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if rollup.Sent != 3 || rollup.Delivered != 2 || rollup.Read != 1 || rollup.Failed != 1 {
		t.Errorf("rollup = %+v, want sent=3 delivered=2 read=1 failed=1", rollup)
	}
	if !approx(rollup.DeliveryRate, 200.0/3) || !approx(rollup.ReadRate, 100.0/3) {
		t.Errorf("rates = (%.2f, %.2f)", rollup.DeliveryRate, rollup.ReadRate)
	}

	campaign, _ := st.GetCampaign(ctx, "camp-1")
	if campaign.MessagesSent != 3 || campaign.MessagesFailed != 1 {
		t.Errorf("campaign row not updated: %+v", campaign)
	}
}

func TestRecomputeFullChainSingleMessage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})
	seedCampaignLogs(t, st, "camp-1", []string{models.StatusRead})

	rollup, err := NewAggregator(st).Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if rollup.Sent != 1 || rollup.Delivered != 1 || rollup.Read != 1 {
		t.Errorf("rollup = %+v, want 1/1/1", rollup)
	}
	if !approx(rollup.DeliveryRate, 100) || !approx(rollup.ReadRate, 100) {
		t.Errorf("rates = (%.2f, %.2f), want 100/100", rollup.DeliveryRate, rollup.ReadRate)
	}
}

func TestRecomputeZeroSent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})
	seedCampaignLogs(t, st, "camp-1", []string{models.StatusQueued, models.StatusFailed})

	rollup, err := NewAggregator(st).Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if rollup.Sent != 0 || rollup.Failed != 1 {
		t.Errorf("rollup = %+v", rollup)
	}
	if rollup.DeliveryRate != 0 || rollup.ReadRate != 0 {
		t.Errorf("rates must be zero when nothing was sent: %+v", rollup)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})
	seedCampaignLogs(t, st, "camp-1", []string{models.StatusSent, models.StatusDelivered})

	agg := NewAggregator(st)
	first, err := agg.Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := agg.Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if *first != *second {
		t.Errorf("repeated recompute diverged: %+v vs %+v", first, second)
	}
}

func TestRecomputeIgnoresOtherCampaigns(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})
	seedCampaignLogs(t, st, "camp-1", []string{models.StatusSent})
	seedCampaignLogs(t, st, "camp-2", []string{models.StatusSent, models.StatusSent})

	rollup, err := NewAggregator(st).Recompute(ctx, "camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if rollup.Sent != 1 {
		t.Errorf("sent = %d, want 1", rollup.Sent)
	}
}

func TestRecomputeUnknownCampaign(t *testing.T) {
	_, err := NewAggregator(store.NewMemory()).Recompute(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRefreshSegment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+491", OptInStatus: models.OptedIn, Tags: `["vip"]`})
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+492", OptInStatus: models.OptedIn, Tags: "[]"})
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+493", OptInStatus: models.OptedOut, Tags: `["vip"]`})
	st.SaveSegment(ctx, &models.Segment{
		ID:               "seg-1",
		FilterConditions: `{"opt_in_status":"Opted In","tags":["vip"]}`,
	})

	count, err := NewAggregator(st).RefreshSegment(ctx, "seg-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	segment, _ := st.GetSegment(ctx, "seg-1")
	if segment.ContactCount != 1 || segment.LastUpdated == nil {
		t.Errorf("segment not updated: %+v", segment)
	}
}

func TestRefreshSegmentBadFilter(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveSegment(ctx, &models.Segment{ID: "seg-1", FilterConditions: "{not json"})

	if _, err := NewAggregator(st).RefreshSegment(ctx, "seg-1"); err == nil {
		t.Error("expected error for malformed filter")
	}
}
