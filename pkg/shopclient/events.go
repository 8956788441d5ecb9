package shopclient

import (
	"encoding/json"
	"time"
)

// Event names as they appear on the wire. Several server-side names feed
// one client-visible concern; the fan-in helpers preserve that mapping.
const (
	EventConnected           = "connected"
	EventDisconnected        = "disconnected"
	EventConnectError        = "connect_error"
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

const (
	actionJoinAppointment  = "join_appointment"
	actionLeaveAppointment = "leave_appointment"
	actionSendMessage      = "send_message"
	actionUpdateProgress   = "update_progress"
	actionTypingStart      = "typing_start"
	actionTypingStop       = "typing_stop"
)

// inbound is the envelope client → server.
type inbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// outbound is the envelope server → client.
type outbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Sender identifies who produced a message or update.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// MessageEvent is a new_message delivery.
type MessageEvent struct {
	ResourceID int64     `json:"resourceId"`
	Message    string    `json:"message"`
	Kind       string    `json:"type"`
	FileURL    string    `json:"fileUrl,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	Sender     Sender    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressEvent arrives as progress_update or appointment_progress.
type ProgressEvent struct {
	ResourceID int64     `json:"resourceId"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	UpdatedBy  Sender    `json:"updatedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypingEvent arrives as user_typing.
type TypingEvent struct {
	ResourceID int64  `json:"resourceId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Typing     bool   `json:"typing"`
}

// NotificationEvent covers notification, low_stock_alert and
// appointment_reminder.
type NotificationEvent struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BayStatusEvent is the service_bay_status_update broadcast.
type BayStatusEvent struct {
	BayID                   int64      `json:"bay_id"`
	Status                  string     `json:"status"`
	AppointmentID           *int64     `json:"appointment_id,omitempty"`
	MechanicID              *int64     `json:"mechanic_id,omitempty"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time,omitempty"`
	ServiceType             string     `json:"service_type,omitempty"`
	Timestamp               time.Time  `json:"timestamp"`
}

// QueueStatusEvent is the queue_status_update broadcast.
type QueueStatusEvent struct {
	AppointmentID int64     `json:"appointment_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// ErrorEvent is the server's local error response.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendMessagePayload struct {
	ResourceID int64  `json:"resourceId"`
	Message    string `json:"message"`
	Kind       string `json:"type"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileName   string `json:"fileName,omitempty"`
}

type updateProgressPayload struct {
	ResourceID int64  `json:"resourceId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type resourcePayload struct {
	ResourceID int64 `json:"resourceId"`
}
