package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/stats"
	"whatsapp-dispatch/internal/store"
)

type capturedEvent struct {
	eventType string
	data      interface{}
}

type fakeEvents struct {
	events []capturedEvent
}

func (f *fakeEvents) BroadcastEvent(eventType string, data interface{}) {
	f.events = append(f.events, capturedEvent{eventType, data})
}

func newTestEngine(st *store.Memory) *Engine {
	engine := NewEngine(st, stats.NewAggregator(st))
	engine.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return engine
}

func seedLog(t *testing.T, st *store.Memory, status string) *models.MessageLog {
	t.Helper()
	ctx := context.Background()
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+4915551234", Tags: "[]"})
	msgLog := &models.MessageLog{
		ID:           "log-1",
		ConnectionID: "conn-1",
		Contact:      "+4915551234",
		Direction:    models.DirectionOutbound,
		MessageType:  models.TypeText,
		Status:       status,
	}
	if err := st.SaveMessageLog(ctx, msgLog); err != nil {
		t.Fatal(err)
	}
	return msgLog
}

func TestApplyFullChain(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	msgLog := seedLog(t, st, models.StatusQueued)

	steps := []struct {
		target string
		meta   Metadata
	}{
		{models.StatusSent, Metadata{MessageID: "wamid.1"}},
		{models.StatusDelivered, Metadata{}},
		{models.StatusRead, Metadata{}},
	}
	for _, step := range steps {
		if err := engine.Apply(ctx, msgLog, step.target, step.meta); err != nil {
			t.Fatalf("Apply(%s): %v", step.target, err)
		}
	}

	stored, err := st.GetMessageLog(ctx, "log-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusRead {
		t.Errorf("status = %s, want read", stored.Status)
	}
	if stored.MessageID != "wamid.1" {
		t.Errorf("message id = %q, want wamid.1", stored.MessageID)
	}
	if stored.SentAt == nil || stored.DeliveredAt == nil || stored.ReadAt == nil {
		t.Errorf("missing timestamps: sent=%v delivered=%v read=%v", stored.SentAt, stored.DeliveredAt, stored.ReadAt)
	}
	if stored.FailedAt != nil {
		t.Errorf("unexpected failed timestamp: %v", stored.FailedAt)
	}
}

func TestApplyInvalidTransitionPreservesState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	msgLog := seedLog(t, st, models.StatusQueued)

	err := engine.Apply(ctx, msgLog, models.StatusRead, Metadata{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	stored, _ := st.GetMessageLog(ctx, "log-1")
	if stored.Status != models.StatusQueued {
		t.Errorf("status changed to %s on rejected transition", stored.Status)
	}
	if stored.ReadAt != nil {
		t.Errorf("read timestamp stamped on rejected transition")
	}
}

func TestApplyTerminalStatesRejectTransitions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)

	for _, terminal := range []string{models.StatusRead, models.StatusFailed} {
		msgLog := seedLog(t, st, terminal)
		for _, target := range []string{models.StatusSent, models.StatusDelivered, models.StatusQueued} {
			if err := engine.Apply(ctx, msgLog, target, Metadata{}); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Apply(%s -> %s) err = %v, want ErrInvalidTransition", terminal, target, err)
			}
		}
	}
}

func TestApplySameStatusIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	events := &fakeEvents{}
	engine.SetEvents(events)
	msgLog := seedLog(t, st, models.StatusSent)

	if err := engine.Apply(ctx, msgLog, models.StatusSent, Metadata{}); err != nil {
		t.Fatalf("re-applying current status: %v", err)
	}
	if len(events.events) != 0 {
		t.Errorf("no-op transition broadcast %d events", len(events.events))
	}
}

func TestApplyFailedDefaultsErrorMessage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	msgLog := seedLog(t, st, models.StatusQueued)

	if err := engine.Apply(ctx, msgLog, models.StatusFailed, Metadata{}); err != nil {
		t.Fatal(err)
	}
	stored, _ := st.GetMessageLog(ctx, "log-1")
	if stored.ErrorMessage != "Unknown error" {
		t.Errorf("error message = %q, want default", stored.ErrorMessage)
	}
	if stored.FailedAt == nil {
		t.Errorf("failed timestamp not stamped")
	}
}

func TestApplyUpdatesContactStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	msgLog := seedLog(t, st, models.StatusQueued)

	engine.Apply(ctx, msgLog, models.StatusSent, Metadata{})
	engine.Apply(ctx, msgLog, models.StatusDelivered, Metadata{})

	contact, err := st.GetContact(ctx, "+4915551234")
	if err != nil {
		t.Fatal(err)
	}
	if contact.TotalMessagesSent != 1 {
		t.Errorf("sent counter = %d, want 1 (incremented once, on Sent only)", contact.TotalMessagesSent)
	}
	if contact.LastMessageDate == nil || contact.LastMessageType != models.TypeText {
		t.Errorf("last-message metadata not recorded: %+v", contact)
	}
}

func TestApplyRecomputesCampaignStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+4915551234", Tags: "[]"})
	st.SaveCampaign(ctx, &models.Campaign{ID: "camp-1", Status: models.CampaignRunning})
	msgLog := &models.MessageLog{
		ID:          "log-1",
		Contact:     "+4915551234",
		Direction:   models.DirectionOutbound,
		MessageType: models.TypeText,
		Status:      models.StatusQueued,
		CampaignID:  "camp-1",
	}
	st.SaveMessageLog(ctx, msgLog)

	if err := engine.Apply(ctx, msgLog, models.StatusSent, Metadata{}); err != nil {
		t.Fatal(err)
	}

	campaign, _ := st.GetCampaign(ctx, "camp-1")
	if campaign.MessagesSent != 1 {
		t.Errorf("campaign sent count = %d, want 1", campaign.MessagesSent)
	}
}

func TestApplyBroadcastsStatusEvent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	events := &fakeEvents{}
	engine.SetEvents(events)
	msgLog := seedLog(t, st, models.StatusQueued)

	if err := engine.Apply(ctx, msgLog, models.StatusSent, Metadata{}); err != nil {
		t.Fatal(err)
	}
	if len(events.events) != 1 || events.events[0].eventType != "message_status" {
		t.Errorf("events = %+v, want one message_status", events.events)
	}
}

func TestApplyByID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := newTestEngine(st)
	seedLog(t, st, models.StatusQueued)

	if err := engine.ApplyByID(ctx, "log-1", models.StatusSent, Metadata{MessageID: "wamid.9"}); err != nil {
		t.Fatal(err)
	}
	stored, _ := st.GetMessageLog(ctx, "log-1")
	if stored.Status != models.StatusSent || stored.MessageID != "wamid.9" {
		t.Errorf("stored = %+v", stored)
	}

	if err := engine.ApplyByID(ctx, "missing", models.StatusSent, Metadata{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown log err = %v, want ErrNotFound", err)
	}
}
