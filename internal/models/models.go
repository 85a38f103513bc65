package models

import (
	"time"
)

// ConnectionStatus values for a WhatsApp session.
const (
	ConnectionDisconnected = "Disconnected"
	ConnectionConnecting   = "Connecting"
	ConnectionConnected    = "Connected"
	ConnectionFailed       = "Failed"
)

// Opt-in status values for a contact.
const (
	OptedIn  = "Opted In"
	OptedOut = "Opted Out"
)

// Message direction values.
const (
	DirectionOutbound = "Outbound"
	DirectionInbound  = "Inbound"
)

// Message/template type values.
const (
	TypeText     = "Text"
	TypeImage    = "Image"
	TypeVideo    = "Video"
	TypeAudio    = "Audio"
	TypeDocument = "Document"
)

// MessageLog status values. Outbound messages move Queued → Sent →
// Delivered → Read, with Failed reachable from Queued or Sent. Inbound
// messages are stored as Received and never transition.
const (
	StatusQueued    = "Queued"
	StatusSent      = "Sent"
	StatusDelivered = "Delivered"
	StatusRead      = "Read"
	StatusFailed    = "Failed"
	StatusReceived  = "Received"
)

// Campaign status values.
const (
	CampaignDraft     = "Draft"
	CampaignRunning   = "Running"
	CampaignPaused    = "Paused"
	CampaignCompleted = "Completed"
	CampaignFailed    = "Failed"
)

// Campaign schedule types.
const (
	ScheduleImmediate = "Immediate"
	ScheduleScheduled = "Scheduled"
)

// Auto-reply trigger types.
const (
	TriggerAllMessages  = "All Messages"
	TriggerKeyword      = "Keyword"
	TriggerPattern      = "Pattern"
	TriggerFirstMessage = "First Message"
)

// Connection represents one WhatsApp session managed by this system.
type Connection struct {
	ID                  string     `gorm:"primaryKey" json:"id"`
	PhoneNumber         string     `gorm:"type:varchar(50)" json:"phone_number"`
	Status              string     `gorm:"type:varchar(20);default:'Disconnected'" json:"status"`
	ConnectionMethod    string     `gorm:"type:varchar(50)" json:"connection_method"` // "QR Code" or "Pairing Code"
	BrowserName         string     `gorm:"type:varchar(100)" json:"browser_name"`
	BrowserVersion      string     `gorm:"type:varchar(50)" json:"browser_version"`
	MarkOnlineOnConnect bool       `json:"mark_online_on_connect"`
	SyncFullHistory     bool       `json:"sync_full_history"`
	QRCode              string     `gorm:"type:text" json:"qr_code"`
	PairingCode         string     `gorm:"type:varchar(20)" json:"pairing_code"`
	DailySent           int        `gorm:"default:0" json:"daily_sent"`
	MonthlySent         int        `gorm:"default:0" json:"monthly_sent"`
	DailyLimit          int        `gorm:"default:1000" json:"daily_limit"`
	MonthlyLimit        int        `gorm:"default:10000" json:"monthly_limit"`
	LastConnected       *time.Time `json:"last_connected"`
	LastDisconnected    *time.Time `json:"last_disconnected"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Connection) TableName() string {
	return "connections"
}

// Contact represents a phone-number-keyed recipient.
type Contact struct {
	PhoneNumber           string     `gorm:"primaryKey;type:varchar(50)" json:"phone_number"`
	Name                  string     `gorm:"type:varchar(255)" json:"name"`
	Email                 string     `gorm:"type:varchar(255)" json:"email"`
	WhatsAppID            string     `gorm:"type:varchar(100)" json:"whatsapp_id"` // e.g. 4915551234@s.whatsapp.net
	OptInStatus           string     `gorm:"type:varchar(20);default:'Opted In'" json:"opt_in_status"`
	OptInDate             *time.Time `json:"opt_in_date"`
	OptOutDate            *time.Time `json:"opt_out_date"`
	Tags                  string     `gorm:"type:text;default:'[]'" json:"tags"` // JSON array
	CustomFields          string     `gorm:"type:text" json:"custom_fields"`     // JSON object
	TotalMessagesSent     int        `gorm:"default:0" json:"total_messages_sent"`
	TotalMessagesReceived int        `gorm:"default:0" json:"total_messages_received"`
	LastMessageDate       *time.Time `json:"last_message_date"`
	LastMessageType       string     `gorm:"type:varchar(20)" json:"last_message_type"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Segment is a named, optionally auto-refreshing filter over contacts.
// Its contact count is derived, never authoritative.
type Segment struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(255)" json:"name"`
	FilterConditions string     `gorm:"type:text" json:"filter_conditions"` // JSON, see store.ContactFilter
	AutoUpdate       bool       `gorm:"default:false" json:"auto_update"`
	ContactCount     int        `gorm:"default:0" json:"contact_count"`
	LastUpdated      *time.Time `json:"last_updated"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Segment) TableName() string {
	return "segments"
}

// Template is reusable message content with {{variable}} placeholders.
type Template struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	TemplateType string    `gorm:"type:varchar(20);default:'Text'" json:"template_type"`
	Content      string    `gorm:"type:text" json:"content"`
	MediaURL     string    `gorm:"type:text" json:"media_url"`
	Variables    string    `gorm:"type:text" json:"variables"` // JSON array, extracted at save time
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

// MessageLog is one row per individual message, inbound or outbound.
// Outbound rows are created by the dispatch queue and mutated only by the
// delivery state machine.
type MessageLog struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	ConnectionID string     `gorm:"index;type:varchar(100)" json:"connection_id"`
	Contact      string     `gorm:"index;type:varchar(50)" json:"contact"`
	Direction    string     `gorm:"type:varchar(10)" json:"direction"`
	MessageType  string     `gorm:"type:varchar(20)" json:"message_type"`
	Content      string     `gorm:"type:text" json:"content"`
	MediaURL     string     `gorm:"type:text" json:"media_url"`
	Status       string     `gorm:"index;type:varchar(20)" json:"status"`
	MessageID    string     `gorm:"type:varchar(255)" json:"message_id"` // transport-assigned id
	CampaignID   string     `gorm:"index;type:varchar(100)" json:"campaign_id"`
	TemplateID   string     `gorm:"type:varchar(100)" json:"template_id"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	Timestamp    time.Time  `gorm:"autoCreateTime" json:"timestamp"`
	SentAt       *time.Time `json:"sent_at"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	ReadAt       *time.Time `json:"read_at"`
	FailedAt     *time.Time `json:"failed_at"`
}

func (MessageLog) TableName() string {
	return "message_logs"
}

// Campaign is a bulk-send job over a segment.
type Campaign struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"type:varchar(255)" json:"name"`
	ConnectionID      string     `gorm:"type:varchar(100)" json:"connection_id"`
	TargetSegment     string     `gorm:"type:varchar(100)" json:"target_segment"`
	MessageTemplate   string     `gorm:"type:varchar(100)" json:"message_template"`
	ScheduleType      string     `gorm:"type:varchar(20);default:'Immediate'" json:"schedule_type"`
	ScheduleDatetime  *time.Time `json:"schedule_datetime"`
	Status            string     `gorm:"index;type:varchar(20);default:'Draft'" json:"status"`
	TotalContacts     int        `gorm:"default:0" json:"total_contacts"`
	MessagesSent      int        `gorm:"default:0" json:"messages_sent"`
	MessagesDelivered int        `gorm:"default:0" json:"messages_delivered"`
	MessagesRead      int        `gorm:"default:0" json:"messages_read"`
	MessagesFailed    int        `gorm:"default:0" json:"messages_failed"`
	DeliveryRate      float64    `gorm:"default:0" json:"delivery_rate"`
	ReadRate          float64    `gorm:"default:0" json:"read_rate"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// AutoReplyRule is an ordered reply rule scoped to one connection or any
// (empty ConnectionID). Lower priority value wins; first match short-circuits.
type AutoReplyRule struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Active        bool      `gorm:"default:true" json:"active"`
	ConnectionID  string    `gorm:"index;type:varchar(100)" json:"connection_id"`
	TriggerType   string    `gorm:"type:varchar(20);not null" json:"trigger_type"`
	TriggerValue  string    `gorm:"type:text" json:"trigger_value"`
	ReplyTemplate string    `gorm:"type:varchar(100)" json:"reply_template"`
	CustomReply   string    `gorm:"type:text" json:"custom_reply"`
	Priority      int       `gorm:"default:0" json:"priority"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutoReplyRule) TableName() string {
	return "auto_reply_rules"
}
