package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Client → server action names.
const (
	ActionJoinAppointment  = "join_appointment"
	ActionLeaveAppointment = "leave_appointment"
	ActionSendMessage      = "send_message"
	ActionUpdateProgress   = "update_progress"
	ActionTypingStart      = "typing_start"
	ActionTypingStop       = "typing_stop"
)

// Server → client event names.
const (
	EventConnected           = "connected"
	EventDisconnected        = "disconnected"
	EventError               = "error"
	EventNewMessage          = "new_message"
	EventProgressUpdate      = "progress_update"
	EventAppointmentProgress = "appointment_progress"
	EventUserTyping          = "user_typing"
	EventNotification        = "notification"
	EventLowStockAlert       = "low_stock_alert"
	EventAppointmentReminder = "appointment_reminder"
	EventBayStatusUpdate     = "service_bay_status_update"
	EventQueueStatusUpdate   = "queue_status_update"
)

// Inbound is the envelope for every client-submitted action.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope pushed to clients. One payload struct exists
// per event name so producers and consumers share a fixed shape.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ResourceRef accepts either a bare appointment id or {"resourceId": n},
// both of which clients send for join/leave.
type ResourceRef struct {
	ID int64
}

func (r *ResourceRef) UnmarshalJSON(b []byte) error {
	var id int64
	if err := json.Unmarshal(b, &id); err == nil {
		r.ID = id
		return nil
	}
	var obj struct {
		ResourceID int64 `json:"resourceId"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = obj.ResourceID
	return nil
}

// SendMessagePayload is the send_message action body.
type SendMessagePayload struct {
	ResourceID int64  `json:"resourceId"`
	Message    string `json:"message"`
	Kind       string `json:"type"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileName   string `json:"fileName,omitempty"`
}

// Validate reports why the payload cannot be dispatched.
func (p SendMessagePayload) Validate() error {
	if p.ResourceID == 0 {
		return ErrMissingResourceID
	}
	if strings.TrimSpace(p.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// ChatMessage is broadcast to the appointment room as new_message.
type ChatMessage struct {
	ResourceID int64     `json:"resourceId"`
	Message    string    `json:"message"`
	Kind       string    `json:"type"`
	FileURL    string    `json:"fileUrl,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	Sender     Identity  `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
}

// UpdateProgressPayload is the update_progress action body (admin/mechanic only).
type UpdateProgressPayload struct {
	ResourceID int64  `json:"resourceId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (p UpdateProgressPayload) Validate() error {
	if p.ResourceID == 0 {
		return ErrMissingResourceID
	}
	if p.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// ProgressUpdate goes out as both progress_update and appointment_progress.
type ProgressUpdate struct {
	ResourceID int64     `json:"resourceId"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	UpdatedBy  Identity  `json:"updatedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypingEvent is rebroadcast as user_typing to everyone in the room
// except the sender.
type TypingEvent struct {
	ResourceID int64  `json:"resourceId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Typing     bool   `json:"typing"`
}

// Notification is the shared shape for notification, low_stock_alert and
// appointment_reminder.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceBayStatus is the service_bay_status_update broadcast payload.
type ServiceBayStatus struct {
	BayID                   int64      `json:"bay_id"`
	Status                  string     `json:"status"`
	AppointmentID           *int64     `json:"appointment_id,omitempty"`
	MechanicID              *int64     `json:"mechanic_id,omitempty"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time,omitempty"`
	ServiceType             string     `json:"service_type,omitempty"`
	Timestamp               time.Time  `json:"timestamp"`
}

// QueueStatus is the queue_status_update broadcast payload.
type QueueStatus struct {
	AppointmentID int64     `json:"appointment_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// ErrorMessage is the WS-safe error sent to a single connection.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectedEvent is sent once after the handshake resolves.
type ConnectedEvent struct {
	ConnectionID string   `json:"connection_id"`
	Identity     Identity `json:"identity"`
}

// DisconnectedEvent carries the close reason.
type DisconnectedEvent struct {
	Reason string `json:"reason"`
}
