// FilePath: internal/broadcast/hub_test.go
package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialibre/crosshub/internal/models"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 8)}
}

func recvFrame(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case raw := <-c.send:
		var frame Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		return &frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestHubDeliversToRoomMembers(t *testing.T) {
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	member := newTestClient()
	outsider := newTestClient()
	hub.register(member)
	hub.register(outsider)
	hub.join(member, RoomAlerts)
	hub.join(outsider, RoomReadings)

	payload, err := AlertPayload(&models.Alert{ID: "al1", CrossingID: "cr1", Type: models.AlertLowBattery})
	require.NoError(t, err)
	hub.Publish(EventAlert, payload, RoomAlerts)

	frame := recvFrame(t, member)
	assert.Equal(t, EventAlert, frame.Event)

	var env struct {
		Type string       `json:"type"`
		Data models.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &env))
	assert.Equal(t, "alert", env.Type)
	assert.Equal(t, "al1", env.Data.ID)

	select {
	case raw := <-outsider.send:
		t.Fatalf("outsider received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeduplicatesAcrossRooms(t *testing.T) {
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient()
	hub.register(client)
	hub.join(client, RoomReadings)
	hub.join(client, CrossingRoom("cr1"))

	hub.Publish(EventReading, []byte(`{"type":"reading"}`), RoomReadings, CrossingRoom("cr1"))

	recvFrame(t, client)
	select {
	case <-client.send:
		t.Fatal("event delivered twice to the same client")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEmptyRoomIsNoOp(t *testing.T) {
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Publish(EventReading, []byte(`{}`), RoomReadings)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, hub.RoomSize(RoomReadings))
}

func TestHubFullQueueDropsEvent(t *testing.T) {
	hub := NewHub(1)
	// Run loop intentionally not started.
	hub.Publish(EventReading, []byte(`{}`), RoomReadings)
	hub.Publish(EventReading, []byte(`{}`), RoomReadings) // dropped, must not block
}

func TestHubUnregisterLeavesAllRooms(t *testing.T) {
	hub := NewHub(16)
	client := newTestClient()
	hub.register(client)
	hub.join(client, RoomAlerts)
	hub.join(client, RoomNotifications)

	require.Equal(t, 1, hub.RoomSize(RoomAlerts))
	hub.unregister(client)
	assert.Equal(t, 0, hub.RoomSize(RoomAlerts))
	assert.Equal(t, 0, hub.RoomSize(RoomNotifications))
	assert.Equal(t, 0, hub.ClientCount())

	// Second unregister is a no-op, not a double close.
	hub.unregister(client)
}

func TestHubJoinRequiresRegistration(t *testing.T) {
	hub := NewHub(16)
	client := newTestClient()
	hub.join(client, RoomAlerts)
	assert.Equal(t, 0, hub.RoomSize(RoomAlerts))
}

func TestNotificationLevels(t *testing.T) {
	alert := &models.Alert{
		ID:         "al1",
		CrossingID: "cr1",
		Type:       models.AlertLowBattery,
		Severity:   models.SeverityCritical,
		CreatedAt:  time.Now(),
	}
	raw, err := AlertNotification(alert, "North crossing")
	require.NoError(t, err)

	var n struct {
		Severity string `json:"severity"`
		Title    string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, "error", n.Severity)
	assert.Contains(t, n.Title, "North crossing")

	ev := &models.StateEvent{ID: "se1", State: models.BarrierDown, EventTime: time.Now()}
	raw, err = StateEventNotification(ev, "North crossing")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, "info", n.Severity)
}
