package shopclient

import (
	"context"
	"encoding/json"
)

// Semantic helpers: thin wrappers over On/Emit using the fixed wire
// event names. The fan-in helpers subscribe one callback to several
// underlying event names, because multiple server-side names feed the
// same client-visible concern.

func (c *Client) JoinAppointment(ctx context.Context, appointmentID int64) error {
	return c.Emit(ctx, actionJoinAppointment, resourcePayload{ResourceID: appointmentID})
}

func (c *Client) LeaveAppointment(ctx context.Context, appointmentID int64) error {
	return c.Emit(ctx, actionLeaveAppointment, resourcePayload{ResourceID: appointmentID})
}

func (c *Client) SendMessage(ctx context.Context, appointmentID int64, text, kind string) error {
	return c.Emit(ctx, actionSendMessage, sendMessagePayload{
		ResourceID: appointmentID,
		Message:    text,
		Kind:       kind,
	})
}

func (c *Client) UpdateProgress(ctx context.Context, appointmentID int64, status, message string) error {
	return c.Emit(ctx, actionUpdateProgress, updateProgressPayload{
		ResourceID: appointmentID,
		Status:     status,
		Message:    message,
	})
}

func (c *Client) StartTyping(ctx context.Context, appointmentID int64) error {
	return c.Emit(ctx, actionTypingStart, resourcePayload{ResourceID: appointmentID})
}

func (c *Client) StopTyping(ctx context.Context, appointmentID int64) error {
	return c.Emit(ctx, actionTypingStop, resourcePayload{ResourceID: appointmentID})
}

// OnNewMessage fires for each new_message in a joined appointment room.
func (c *Client) OnNewMessage(fn func(MessageEvent)) *Listener {
	return c.On(EventNewMessage, decodeInto(c, fn))
}

// OnProgressUpdate fans in progress_update and appointment_progress.
func (c *Client) OnProgressUpdate(fn func(ProgressEvent)) []*Listener {
	cb := decodeInto(c, fn)
	return []*Listener{
		c.On(EventProgressUpdate, cb),
		c.On(EventAppointmentProgress, cb),
	}
}

// OnAppointmentUpdate fans in every event that changes how an
// appointment is displayed: progress plus queue movement.
func (c *Client) OnAppointmentUpdate(fn func(event string, data json.RawMessage)) []*Listener {
	return []*Listener{
		c.On(EventProgressUpdate, Callback(fn)),
		c.On(EventAppointmentProgress, Callback(fn)),
		c.On(EventQueueStatusUpdate, Callback(fn)),
	}
}

// OnNotification fans in notification, low_stock_alert and
// appointment_reminder into one callback.
func (c *Client) OnNotification(fn func(NotificationEvent)) []*Listener {
	cb := decodeInto(c, fn)
	return []*Listener{
		c.On(EventNotification, cb),
		c.On(EventLowStockAlert, cb),
		c.On(EventAppointmentReminder, cb),
	}
}

// OnBayStatus fires for shop-wide service_bay_status_update broadcasts.
func (c *Client) OnBayStatus(fn func(BayStatusEvent)) *Listener {
	return c.On(EventBayStatusUpdate, decodeInto(c, fn))
}

// OnQueueStatus fires for shop-wide queue_status_update broadcasts.
func (c *Client) OnQueueStatus(fn func(QueueStatusEvent)) *Listener {
	return c.On(EventQueueStatusUpdate, decodeInto(c, fn))
}

// OnUserTyping fires when another member of a joined room is typing.
func (c *Client) OnUserTyping(fn func(TypingEvent)) *Listener {
	return c.On(EventUserTyping, decodeInto(c, fn))
}

// OnError fires for server-sent error events and connection errors.
func (c *Client) OnError(fn func(ErrorEvent)) []*Listener {
	cb := decodeInto(c, fn)
	return []*Listener{
		c.On(EventError, cb),
		c.On(EventConnectError, cb),
	}
}

// decodeInto adapts a typed callback to the raw Callback signature,
// reporting decode failures through the client logger.
func decodeInto[T any](c *Client, fn func(T)) Callback {
	return func(event string, data json.RawMessage) {
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("failed to decode event payload", map[string]any{"event": event, "error": err.Error()})
			return
		}
		fn(ev)
	}
}
