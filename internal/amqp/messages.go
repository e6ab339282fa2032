package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"presupuestos/internal/notify"
)

// NotificationMessage carries one presented notification to the notifier
// worker.
type NotificationMessage struct {
	ID        string      `json:"id"`
	Icon      notify.Icon `json:"icon"`
	Title     string      `json:"title"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewNotificationMessage stamps n with a fresh id and the current time.
func NewNotificationMessage(n notify.Notification) *NotificationMessage {
	return &NotificationMessage{
		ID:        uuid.NewString(),
		Icon:      n.Icon,
		Title:     n.Title,
		Text:      n.Text,
		Timestamp: time.Now(),
	}
}

// Notification returns the payload without the envelope fields.
func (m *NotificationMessage) Notification() notify.Notification {
	return notify.Notification{Icon: m.Icon, Title: m.Title, Text: m.Text}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message body.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
