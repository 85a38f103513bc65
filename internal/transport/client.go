// Package transport talks to the external node service that owns the
// actual WhatsApp sessions. This process never performs network delivery
// itself; its responsibility ends at a reliable hand-off.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/template"
)

// Error is a transport-layer failure: a non-2xx response or a timeout.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type ConnectRequest struct {
	ConnectionID        string `json:"connection_id"`
	PhoneNumber         string `json:"phone_number"`
	ConnectionMethod    string `json:"connection_method"`
	BrowserName         string `json:"browser_name"`
	BrowserVersion      string `json:"browser_version"`
	MarkOnlineOnConnect bool   `json:"mark_online_on_connect"`
	SyncFullHistory     bool   `json:"sync_full_history"`
}

type ConnectResponse struct {
	PairingCode string `json:"pairing_code,omitempty"`
}

// ConnectRequestFor builds the connect payload for a stored connection.
func ConnectRequestFor(conn *models.Connection) ConnectRequest {
	return ConnectRequest{
		ConnectionID:        conn.ID,
		PhoneNumber:         conn.PhoneNumber,
		ConnectionMethod:    conn.ConnectionMethod,
		BrowserName:         conn.BrowserName,
		BrowserVersion:      conn.BrowserVersion,
		MarkOnlineOnConnect: conn.MarkOnlineOnConnect,
		SyncFullHistory:     conn.SyncFullHistory,
	}
}

type QueueMessageRequest struct {
	ConnectionID string           `json:"connection_id"`
	MessageLogID string           `json:"message_log_id"`
	Recipient    string           `json:"recipient"`
	Message      template.Payload `json:"message"`
	CampaignID   string           `json:"campaign_id,omitempty"`
}

func (c *Client) Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	var resp ConnectResponse
	if err := c.post(ctx, "/api/connect", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Disconnect(ctx context.Context, connectionID string) error {
	body := map[string]string{"connection_id": connectionID}
	return c.post(ctx, "/api/disconnect", body, nil)
}

// QueueMessage hands one outbound message to the transport. A nil return
// means acknowledged receipt, not delivery.
func (c *Client) QueueMessage(ctx context.Context, req QueueMessageRequest) error {
	return c.post(ctx, "/api/queue-message", req, nil)
}

func (c *Client) GetContactInfo(ctx context.Context, connectionID, phoneNumber string) (map[string]interface{}, error) {
	body := map[string]string{
		"connection_id": connectionID,
		"phone_number":  phoneNumber,
	}
	var info map[string]interface{}
	if err := c.post(ctx, "/api/get-contact-info", body, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Status returns the transport service health payload.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	var status map[string]interface{}
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode transport response: %w", err)
		}
	}
	return nil
}
