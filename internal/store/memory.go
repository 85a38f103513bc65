package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"whatsapp-dispatch/internal/models"
)

// Memory is an in-process Store used by tests and by dev mode runs that
// have no database configured. All methods copy records in and out so
// callers never share struct instances with the store.
type Memory struct {
	mu          sync.Mutex
	connections map[string]models.Connection
	contacts    map[string]models.Contact
	segments    map[string]models.Segment
	templates   map[string]models.Template
	campaigns   map[string]models.Campaign
	messageLogs map[string]models.MessageLog
	logOrder    []string
	rules       map[uint]models.AutoReplyRule
	nextRuleID  uint
}

func NewMemory() *Memory {
	return &Memory{
		connections: make(map[string]models.Connection),
		contacts:    make(map[string]models.Contact),
		segments:    make(map[string]models.Segment),
		templates:   make(map[string]models.Template),
		campaigns:   make(map[string]models.Campaign),
		messageLogs: make(map[string]models.MessageLog),
		rules:       make(map[uint]models.AutoReplyRule),
		nextRuleID:  1,
	}
}

func (s *Memory) GetConnection(_ context.Context, id string) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &conn, nil
}

func (s *Memory) SaveConnection(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ID] = *conn
	return nil
}

func (s *Memory) ListConnections(_ context.Context) ([]models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]models.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns, nil
}

func (s *Memory) TryIncrementSendCounters(_ context.Context, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[connectionID]
	if !ok {
		return false, ErrNotFound
	}
	if conn.DailySent >= conn.DailyLimit || conn.MonthlySent >= conn.MonthlyLimit {
		return false, nil
	}
	conn.DailySent++
	conn.MonthlySent++
	s.connections[connectionID] = conn
	return true, nil
}

func (s *Memory) ResetDailyCounters(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.connections {
		conn.DailySent = 0
		s.connections[id] = conn
	}
	return nil
}

func (s *Memory) ResetMonthlyCounters(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.connections {
		conn.MonthlySent = 0
		s.connections[id] = conn
	}
	return nil
}

func (s *Memory) GetContact(_ context.Context, phone string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return &contact, nil
}

func (s *Memory) ContactExists(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contacts[phone]
	return ok, nil
}

func (s *Memory) SaveContact(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[contact.PhoneNumber] = *contact
	return nil
}

func (s *Memory) FindContacts(_ context.Context, filter ContactFilter) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var contacts []models.Contact
	for _, contact := range s.contacts {
		if filter.OptInStatus != "" && contact.OptInStatus != filter.OptInStatus {
			continue
		}
		if !hasAllTags(contact.Tags, filter.Tags) {
			continue
		}
		contacts = append(contacts, contact)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].PhoneNumber < contacts[j].PhoneNumber
	})
	return contacts, nil
}

func hasAllTags(stored string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	var tags []string
	if err := json.Unmarshal([]byte(stored), &tags); err != nil {
		return false
	}
	for _, want := range wanted {
		found := false
		for _, tag := range tags {
			// Exact comparison, matching the SQL store's LIKE on the
			// JSON-encoded tag.
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Memory) GetSegment(_ context.Context, id string) (*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	segment, ok := s.segments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &segment, nil
}

func (s *Memory) SaveSegment(_ context.Context, segment *models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[segment.ID] = *segment
	return nil
}

func (s *Memory) FindAutoUpdateSegments(_ context.Context) ([]models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var segments []models.Segment
	for _, segment := range s.segments {
		if segment.AutoUpdate {
			segments = append(segments, segment)
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].ID < segments[j].ID })
	return segments, nil
}

func (s *Memory) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tmpl, nil
}

func (s *Memory) SaveTemplate(_ context.Context, tmpl *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = *tmpl
	return nil
}

func (s *Memory) ListTemplates(_ context.Context) ([]models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates := make([]models.Template, 0, len(s.templates))
	for _, tmpl := range s.templates {
		templates = append(templates, tmpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func (s *Memory) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &campaign, nil
}

func (s *Memory) SaveCampaign(_ context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = *campaign
	return nil
}

func (s *Memory) FindCampaignsByStatus(_ context.Context, status string) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var campaigns []models.Campaign
	for _, campaign := range s.campaigns {
		if campaign.Status == status {
			campaigns = append(campaigns, campaign)
		}
	}
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].ID < campaigns[j].ID })
	return campaigns, nil
}

func (s *Memory) FindDueScheduledCampaigns(_ context.Context, now time.Time) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var campaigns []models.Campaign
	for _, campaign := range s.campaigns {
		if campaign.Status != models.CampaignDraft || campaign.ScheduleType != models.ScheduleScheduled {
			continue
		}
		if campaign.ScheduleDatetime != nil && !campaign.ScheduleDatetime.After(now) {
			campaigns = append(campaigns, campaign)
		}
	}
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].ID < campaigns[j].ID })
	return campaigns, nil
}

func (s *Memory) GetMessageLog(_ context.Context, id string) (*models.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgLog, ok := s.messageLogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &msgLog, nil
}

func (s *Memory) SaveMessageLog(_ context.Context, msgLog *models.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messageLogs[msgLog.ID]; !ok {
		s.logOrder = append(s.logOrder, msgLog.ID)
		if msgLog.Timestamp.IsZero() {
			msgLog.Timestamp = time.Now()
		}
	}
	s.messageLogs[msgLog.ID] = *msgLog
	return nil
}

func (s *Memory) FindMessageLogsByContact(_ context.Context, phone string, limit int) ([]models.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []models.MessageLog
	for i := len(s.logOrder) - 1; i >= 0 && (limit <= 0 || len(logs) < limit); i-- {
		if msgLog := s.messageLogs[s.logOrder[i]]; msgLog.Contact == phone {
			logs = append(logs, msgLog)
		}
	}
	return logs, nil
}

func (s *Memory) ListRecentMessageLogs(_ context.Context, limit int) ([]models.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []models.MessageLog
	for i := len(s.logOrder) - 1; i >= 0 && (limit <= 0 || len(logs) < limit); i-- {
		logs = append(logs, s.messageLogs[s.logOrder[i]])
	}
	return logs, nil
}

func (s *Memory) CountInboundMessages(_ context.Context, phone, connectionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, msgLog := range s.messageLogs {
		if msgLog.Contact != phone || msgLog.Direction != models.DirectionInbound {
			continue
		}
		if connectionID != "" && msgLog.ConnectionID != connectionID {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Memory) CountCampaignMessagesByStatus(_ context.Context, campaignID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, msgLog := range s.messageLogs {
		if msgLog.CampaignID == campaignID {
			counts[msgLog.Status]++
		}
	}
	return counts, nil
}

func (s *Memory) FindActiveAutoReplyRules(_ context.Context, connectionID string) ([]models.AutoReplyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []models.AutoReplyRule
	for _, rule := range s.rules {
		if !rule.Active {
			continue
		}
		if rule.ConnectionID != "" && rule.ConnectionID != connectionID {
			continue
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *Memory) SaveAutoReplyRule(_ context.Context, rule *models.AutoReplyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = s.nextRuleID
		s.nextRuleID++
	}
	s.rules[rule.ID] = *rule
	return nil
}

func (s *Memory) ListAutoReplyRules(_ context.Context) ([]models.AutoReplyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := make([]models.AutoReplyRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *Memory) DeleteAutoReplyRule(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}
