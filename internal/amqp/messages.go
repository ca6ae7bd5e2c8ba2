package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrPermanent marks a message that can never be processed, either malformed
// or rejected for good by a downstream API. It is dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// ExportJobMessage asks the worker to render a monthly report and upload it
// to Google Drive. AccessToken is optional; without it the worker uses its
// own stored OAuth token.
type ExportJobMessage struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Month       string    `json:"month"`
	Period      string    `json:"period"`
	Format      string    `json:"format"`
	AccessToken string    `json:"access_token,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExportJobMessage(userID, month, period, format, accessToken string) *ExportJobMessage {
	return &ExportJobMessage{
		JobID:       uuid.NewString(),
		UserID:      userID,
		Month:       month,
		Period:      period,
		Format:      format,
		AccessToken: accessToken,
		Timestamp:   time.Now(),
	}
}

func (m *ExportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportJobMessageFromJSON(data []byte) (*ExportJobMessage, error) {
	var msg ExportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if msg.UserID == "" || msg.Month == "" {
		return nil, fmt.Errorf("%w: missing user or month", ErrPermanent)
	}
	return &msg, nil
}

// Sync event kinds.
const (
	EventSyncStart    = "sync_start"
	EventSyncComplete = "sync_complete"
	EventSyncError    = "sync_error"
)

// SyncEventMessage mirrors one sync notification.
type SyncEventMessage struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *SyncEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncEventMessageFromJSON(data []byte) (*SyncEventMessage, error) {
	var msg SyncEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return &msg, nil
}
