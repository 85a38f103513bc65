package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"whatsapp-dispatch/internal/models"
)

// Gorm implements Store on top of a gorm database handle.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Connections ---

func (s *Gorm) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &conn, nil
}

func (s *Gorm) SaveConnection(ctx context.Context, conn *models.Connection) error {
	return s.db.WithContext(ctx).Save(conn).Error
}

func (s *Gorm) ListConnections(ctx context.Context) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.db.WithContext(ctx).Find(&conns).Error
	return conns, err
}

func (s *Gorm) TryIncrementSendCounters(ctx context.Context, connectionID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND daily_sent < daily_limit AND monthly_sent < monthly_limit", connectionID).
		Updates(map[string]interface{}{
			"daily_sent":   gorm.Expr("daily_sent + 1"),
			"monthly_sent": gorm.Expr("monthly_sent + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Gorm) ResetDailyCounters(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&models.Connection{}).
		Where("daily_sent <> 0").Update("daily_sent", 0).Error
}

func (s *Gorm) ResetMonthlyCounters(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&models.Connection{}).
		Where("monthly_sent <> 0").Update("monthly_sent", 0).Error
}

// --- Contacts ---

func (s *Gorm) GetContact(ctx context.Context, phone string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, "phone_number = ?", phone).Error; err != nil {
		return nil, translateErr(err)
	}
	return &contact, nil
}

func (s *Gorm) ContactExists(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Contact{}).
		Where("phone_number = ?", phone).Count(&count).Error
	return count > 0, err
}

func (s *Gorm) SaveContact(ctx context.Context, contact *models.Contact) error {
	return s.db.WithContext(ctx).Save(contact).Error
}

func (s *Gorm) FindContacts(ctx context.Context, filter ContactFilter) ([]models.Contact, error) {
	q := s.db.WithContext(ctx).Model(&models.Contact{})
	if filter.OptInStatus != "" {
		q = q.Where("opt_in_status = ?", filter.OptInStatus)
	}
	for _, tag := range filter.Tags {
		// Tags are stored as a JSON array of strings.
		q = q.Where("tags LIKE ?", fmt.Sprintf(`%%"%s"%%`, tag))
	}
	var contacts []models.Contact
	err := q.Find(&contacts).Error
	return contacts, err
}

// --- Segments ---

func (s *Gorm) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	var segment models.Segment
	if err := s.db.WithContext(ctx).First(&segment, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &segment, nil
}

func (s *Gorm) SaveSegment(ctx context.Context, segment *models.Segment) error {
	return s.db.WithContext(ctx).Save(segment).Error
}

func (s *Gorm) FindAutoUpdateSegments(ctx context.Context) ([]models.Segment, error) {
	var segments []models.Segment
	err := s.db.WithContext(ctx).Where("auto_update = ?", true).Find(&segments).Error
	return segments, err
}

// --- Templates ---

func (s *Gorm) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var tmpl models.Template
	if err := s.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &tmpl, nil
}

func (s *Gorm) SaveTemplate(ctx context.Context, tmpl *models.Template) error {
	return s.db.WithContext(ctx).Save(tmpl).Error
}

func (s *Gorm) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).Find(&templates).Error
	return templates, err
}

// --- Campaigns ---

func (s *Gorm) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &campaign, nil
}

func (s *Gorm) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	return s.db.WithContext(ctx).Save(campaign).Error
}

func (s *Gorm) FindCampaignsByStatus(ctx context.Context, status string) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).Where("status = ?", status).Find(&campaigns).Error
	return campaigns, err
}

func (s *Gorm) FindDueScheduledCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND schedule_type = ? AND schedule_datetime <= ?",
			models.CampaignDraft, models.ScheduleScheduled, now).
		Find(&campaigns).Error
	return campaigns, err
}

// --- Message logs ---

func (s *Gorm) GetMessageLog(ctx context.Context, id string) (*models.MessageLog, error) {
	var msgLog models.MessageLog
	if err := s.db.WithContext(ctx).First(&msgLog, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &msgLog, nil
}

func (s *Gorm) SaveMessageLog(ctx context.Context, msgLog *models.MessageLog) error {
	return s.db.WithContext(ctx).Save(msgLog).Error
}

func (s *Gorm) FindMessageLogsByContact(ctx context.Context, phone string, limit int) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	err := s.db.WithContext(ctx).
		Where("contact = ?", phone).
		Order("timestamp desc").Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *Gorm) ListRecentMessageLogs(ctx context.Context, limit int) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	err := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&logs).Error
	return logs, err
}

func (s *Gorm) CountInboundMessages(ctx context.Context, phone, connectionID string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.MessageLog{}).
		Where("contact = ? AND direction = ?", phone, models.DirectionInbound)
	if connectionID != "" {
		q = q.Where("connection_id = ?", connectionID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (s *Gorm) CountCampaignMessagesByStatus(ctx context.Context, campaignID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.MessageLog{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// --- Auto-reply rules ---

func (s *Gorm) FindActiveAutoReplyRules(ctx context.Context, connectionID string) ([]models.AutoReplyRule, error) {
	var rules []models.AutoReplyRule
	err := s.db.WithContext(ctx).
		Where("active = ? AND (connection_id = ? OR connection_id = '')", true, connectionID).
		Order("priority asc").
		Find(&rules).Error
	return rules, err
}

func (s *Gorm) SaveAutoReplyRule(ctx context.Context, rule *models.AutoReplyRule) error {
	return s.db.WithContext(ctx).Save(rule).Error
}

func (s *Gorm) ListAutoReplyRules(ctx context.Context) ([]models.AutoReplyRule, error) {
	var rules []models.AutoReplyRule
	err := s.db.WithContext(ctx).Order("priority asc").Find(&rules).Error
	return rules, err
}

func (s *Gorm) DeleteAutoReplyRule(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AutoReplyRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
