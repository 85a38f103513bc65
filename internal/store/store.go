package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"whatsapp-dispatch/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ContactFilter is the structured segment predicate. Segments persist it
// as JSON in Segment.FilterConditions.
type ContactFilter struct {
	OptInStatus string   `json:"opt_in_status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ParseContactFilter decodes a segment's stored filter conditions.
func ParseContactFilter(conditions string) (ContactFilter, error) {
	var f ContactFilter
	if conditions == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(conditions), &f); err != nil {
		return f, err
	}
	return f, nil
}

// Store is the persistence boundary for every entity the engine touches.
// Implementations: Gorm (Postgres/sqlite) and Memory (tests, dev mode).
type Store interface {
	GetConnection(ctx context.Context, id string) (*models.Connection, error)
	SaveConnection(ctx context.Context, conn *models.Connection) error
	ListConnections(ctx context.Context) ([]models.Connection, error)
	// TryIncrementSendCounters bumps both send counters in a single
	// conditional update guarded by the limits. Returns false without
	// error when a limit was already reached.
	TryIncrementSendCounters(ctx context.Context, connectionID string) (bool, error)
	ResetDailyCounters(ctx context.Context) error
	ResetMonthlyCounters(ctx context.Context) error

	GetContact(ctx context.Context, phone string) (*models.Contact, error)
	ContactExists(ctx context.Context, phone string) (bool, error)
	SaveContact(ctx context.Context, contact *models.Contact) error
	FindContacts(ctx context.Context, filter ContactFilter) ([]models.Contact, error)

	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	SaveSegment(ctx context.Context, segment *models.Segment) error
	FindAutoUpdateSegments(ctx context.Context) ([]models.Segment, error)

	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	SaveTemplate(ctx context.Context, tmpl *models.Template) error
	ListTemplates(ctx context.Context) ([]models.Template, error)

	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	FindCampaignsByStatus(ctx context.Context, status string) ([]models.Campaign, error)
	FindDueScheduledCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)

	GetMessageLog(ctx context.Context, id string) (*models.MessageLog, error)
	SaveMessageLog(ctx context.Context, msgLog *models.MessageLog) error
	FindMessageLogsByContact(ctx context.Context, phone string, limit int) ([]models.MessageLog, error)
	ListRecentMessageLogs(ctx context.Context, limit int) ([]models.MessageLog, error)
	// CountInboundMessages counts inbound logs from a contact. An empty
	// connectionID counts across all connections.
	CountInboundMessages(ctx context.Context, phone, connectionID string) (int64, error)
	CountCampaignMessagesByStatus(ctx context.Context, campaignID string) (map[string]int64, error)

	// FindActiveAutoReplyRules returns active rules scoped to the given
	// connection or to any connection, ordered by ascending priority.
	FindActiveAutoReplyRules(ctx context.Context, connectionID string) ([]models.AutoReplyRule, error)
	SaveAutoReplyRule(ctx context.Context, rule *models.AutoReplyRule) error
	ListAutoReplyRules(ctx context.Context) ([]models.AutoReplyRule, error)
	DeleteAutoReplyRule(ctx context.Context, id uint) error
}
