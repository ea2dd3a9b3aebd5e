// FilePath: internal/broadcast/events.go
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vialibre/crosshub/internal/models"
)

// Fixed topic rooms. Per-crossing and per-user rooms are derived with
// CrossingRoom and UserRoom.
const (
	RoomReadings      = "readings"
	RoomStateEvents   = "state-events"
	RoomAlerts        = "alerts"
	RoomNotifications = "notifications"
)

// Client-emitted event names the socket layer dispatches on.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventPing        = "ping"
)

// Server-emitted event names.
const (
	EventConnected     = "connected"
	EventSubscribed    = "subscribed"
	EventUnsubscribed  = "unsubscribed"
	EventJoinedRoom    = "joined-room"
	EventLeftRoom      = "left-room"
	EventPong          = "pong"
	EventError         = "error"
	EventReading       = "reading"
	EventStateEvent    = "state-event"
	EventAlert         = "alert"
	EventAlertResolved = "alert-resolved"
	EventEntityUpdate  = "entity-update"
	EventNotification  = "notification"
)

func CrossingRoom(crossingID string) string { return "crossing-" + crossingID }

func UserRoom(operatorID string) string { return "user-" + operatorID }

// fixedRooms are the topic names accepted by subscribe/unsubscribe.
var fixedRooms = map[string]bool{
	RoomReadings:      true,
	RoomStateEvents:   true,
	RoomAlerts:        true,
	RoomNotifications: true,
}

// Frame is the wire format in both directions: an event name plus an
// event-specific JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func marshalFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// envelope wraps a domain record for room delivery.
type envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func marshalEnvelope(kind string, data any, ts time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Type:      kind,
		Data:      data,
		Timestamp: ts.Format(time.RFC3339Nano),
	})
}

// ReadingPayload serializes a reading for the readings and crossing rooms.
func ReadingPayload(r *models.Reading) ([]byte, error) {
	return marshalEnvelope("reading", r, r.Timestamp)
}

// StateEventPayload serializes a barrier transition.
func StateEventPayload(ev *models.StateEvent) ([]byte, error) {
	return marshalEnvelope("state-event", ev, ev.EventTime)
}

// AlertPayload serializes a newly raised alert.
func AlertPayload(a *models.Alert) ([]byte, error) {
	return marshalEnvelope("alert", a, a.CreatedAt)
}

// AlertResolvedPayload serializes an alert after external resolution.
func AlertResolvedPayload(a *models.Alert) ([]byte, error) {
	ts := a.CreatedAt
	if a.ResolvedAt != nil {
		ts = *a.ResolvedAt
	}
	return marshalEnvelope("alert-resolved", a, ts)
}

// EntityUpdatePayload serializes a mutated crossing for its room.
func EntityUpdatePayload(data any, ts time.Time) ([]byte, error) {
	return marshalEnvelope("entity-update", data, ts)
}

// notification is the human-facing companion event on the notifications
// room.
type notification struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
}

// StateEventNotification builds the notification accompanying a barrier
// transition.
func StateEventNotification(ev *models.StateEvent, crossingName string) ([]byte, error) {
	return json.Marshal(notification{
		Type:      "state-event",
		Title:     fmt.Sprintf("Barrier event - %s", crossingName),
		Message:   fmt.Sprintf("Barrier %s", ev.State),
		Data:      ev,
		Severity:  "info",
		Timestamp: ev.EventTime.Format(time.RFC3339Nano),
	})
}

// AlertNotification builds the notification accompanying a new alert, with
// severity mapped to the notification level.
func AlertNotification(a *models.Alert, crossingName string) ([]byte, error) {
	return json.Marshal(notification{
		Type:      "alert",
		Title:     fmt.Sprintf("%s alert - %s", a.Severity, crossingName),
		Message:   a.Description,
		Data:      a,
		Severity:  a.Severity.NotificationLevel(),
		Timestamp: a.CreatedAt.Format(time.RFC3339Nano),
	})
}
