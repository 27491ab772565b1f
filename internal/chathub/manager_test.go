package chathub_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcall/backend/internal/chathub"
	"chatcall/backend/internal/models"
	"chatcall/backend/internal/monitoring"
)

func newTestHub() *chathub.ManagerService {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	return chathub.NewManagerService(chathub.NewHistoryStore(0), metrics, zerolog.Nop())
}

func settle() {
	time.Sleep(50 * time.Millisecond)
}

func inbound(t *testing.T, connID, name string, payload any) chathub.Inbound {
	t.Helper()
	ev, err := models.NewEvent(name, payload)
	require.NoError(t, err)
	return chathub.Inbound{ConnID: connID, Event: ev}
}

func TestManager_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()
	assert.Contains(t, hub.Clients, "conn_A")

	// A fresh connection gets the (empty) history replay right away.
	events := clientA.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventChatHistory, events[0].Event)

	hub.UnregisterCh <- clientA
	settle()
	assert.NotContains(t, hub.Clients, "conn_A")
}

func TestManager_ChatBroadcastIncludesSender(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	clientB := newMockClient("conn_B")
	clientC := newMockClient("conn_C")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	hub.RegisterCh <- clientC
	settle()
	clientA.DrainEvents()
	clientB.DrainEvents()
	clientC.DrainEvents()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventChatMessage, models.ChatMessage{Sender: "alice", Body: "hi"})
	settle()

	for _, c := range []*MockClient{clientA, clientB, clientC} {
		events := EventsNamed(c.DrainEvents(), models.EventChatMessage)
		require.Len(t, events, 1, "client %s", c.GetConnID())

		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(events[0].Data, &msg))
		assert.Equal(t, "hi", msg.Body)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, models.StatusSent, msg.Status)
		assert.Equal(t, uint(1), msg.ID)
	}
}

func TestManager_ChatSenderFallsBackToBoundName(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventSetName, models.NameRequest{Name: "alice"})
	hub.IncomingCh <- inbound(t, "conn_A", models.EventChatMessage, models.ChatMessage{Body: "no sender field"})
	settle()

	events := EventsNamed(clientA.DrainEvents(), models.EventChatMessage)
	require.Len(t, events, 1)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(events[0].Data, &msg))
	assert.Equal(t, "alice", msg.Sender)
}

func TestManager_SignalingExcludesSender(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	clientB := newMockClient("conn_B")
	clientC := newMockClient("conn_C")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	hub.RegisterCh <- clientC
	settle()
	clientA.DrainEvents()
	clientB.DrainEvents()
	clientC.DrainEvents()

	offer := json.RawMessage(`{"offer":{"type":"offer","sdp":"v=0 fake"}}`)
	hub.IncomingCh <- chathub.Inbound{ConnID: "conn_A", Event: models.Event{Event: models.EventOffer, Data: offer}}
	settle()

	assert.Empty(t, EventsNamed(clientA.DrainEvents(), models.EventOffer), "sender must not receive its own offer")

	for _, c := range []*MockClient{clientB, clientC} {
		events := EventsNamed(c.DrainEvents(), models.EventOffer)
		require.Len(t, events, 1, "client %s", c.GetConnID())
		// The payload passes through byte-for-byte.
		assert.JSONEq(t, string(offer), string(events[0].Data))
	}
}

func TestManager_PresenceMultiDevice(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	observer := newMockClient("conn_obs")
	bob1 := newMockClient("conn_bob1")
	bob2 := newMockClient("conn_bob2")
	hub.RegisterCh <- observer
	hub.RegisterCh <- bob1
	hub.RegisterCh <- bob2
	settle()

	hub.IncomingCh <- inbound(t, "conn_bob1", models.EventSetName, models.NameRequest{Name: "bob"})
	hub.IncomingCh <- inbound(t, "conn_bob2", models.EventSetName, models.NameRequest{Name: "bob"})
	settle()

	// Online is re-announced for every bind of the same name.
	events := EventsNamed(observer.DrainEvents(), models.EventUserStatus)
	require.Len(t, events, 2)
	for _, ev := range events {
		var st models.UserStatus
		require.NoError(t, json.Unmarshal(ev.Data, &st))
		assert.Equal(t, "bob", st.User)
		assert.Equal(t, models.PresenceOnline, st.Status)
	}
	assert.True(t, hub.Presence.IsOnline("bob"))

	// First disconnect leaves one connection: no presence event at all.
	hub.UnregisterCh <- bob1
	settle()
	assert.Empty(t, EventsNamed(observer.DrainEvents(), models.EventUserStatus))
	assert.True(t, hub.Presence.IsOnline("bob"))

	// Second disconnect empties the set: exactly one offline event.
	hub.UnregisterCh <- bob2
	settle()
	events = EventsNamed(observer.DrainEvents(), models.EventUserStatus)
	require.Len(t, events, 1)
	var st models.UserStatus
	require.NoError(t, json.Unmarshal(events[0].Data, &st))
	assert.Equal(t, "bob", st.User)
	assert.Equal(t, models.PresenceOffline, st.Status)
	assert.False(t, hub.Presence.IsOnline("bob"))
}

func TestManager_SetNameAckAndRebindIgnored(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	clientB := newMockClient("conn_B")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	settle()
	clientA.DrainEvents()
	clientB.DrainEvents()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventSetName, models.NameRequest{Name: "alice"})
	settle()

	acks := EventsNamed(clientA.DrainEvents(), models.EventNameSet)
	require.Len(t, acks, 1)
	var ack models.NameRequest
	require.NoError(t, json.Unmarshal(acks[0].Data, &ack))
	assert.Equal(t, "alice", ack.Name)

	// The confirmation goes to the caller only; others get the presence event.
	bEvents := clientB.DrainEvents()
	assert.Empty(t, EventsNamed(bEvents, models.EventNameSet))
	assert.Len(t, EventsNamed(bEvents, models.EventUserStatus), 1)

	// A second declaration on the same connection is ignored outright.
	hub.IncomingCh <- inbound(t, "conn_A", models.EventSetName, models.NameRequest{Name: "mallory"})
	settle()
	assert.Empty(t, clientA.DrainEvents())
	assert.Empty(t, clientB.DrainEvents())
	name, ok := hub.Presence.NameOf("conn_A")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestManager_SeenTwiceBroadcastsTwice(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventChatMessage, models.ChatMessage{Sender: "alice", Body: "hi"})
	hub.IncomingCh <- inbound(t, "conn_A", models.EventMessageSeen, models.StatusUpdate{ID: 1})
	hub.IncomingCh <- inbound(t, "conn_A", models.EventMessageSeen, models.StatusUpdate{ID: 1})
	settle()

	// Idempotent state, non-idempotent notification: two broadcasts.
	updates := EventsNamed(clientA.DrainEvents(), models.EventUpdateStatus)
	require.Len(t, updates, 2)
	for _, ev := range updates {
		var upd models.StatusUpdate
		require.NoError(t, json.Unmarshal(ev.Data, &upd))
		assert.Equal(t, uint(1), upd.ID)
		assert.Equal(t, models.StatusSeen, upd.Status)
	}
}

func TestManager_SeenUnknownMessageAbsorbed(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()
	clientA.DrainEvents()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventMessageSeen, models.StatusUpdate{ID: 42})
	settle()

	assert.Empty(t, clientA.DrainEvents())
	assert.Contains(t, hub.Clients, "conn_A", "protocol misuse must not terminate the connection")
}

func TestManager_HistoryReplayOrderAndStatus(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()

	hub.IncomingCh <- inbound(t, "conn_A", models.EventChatMessage, models.ChatMessage{Sender: "alice", Body: "first"})
	hub.IncomingCh <- inbound(t, "conn_A", models.EventChatMessage, models.ChatMessage{Sender: "alice", Body: "second"})
	hub.IncomingCh <- inbound(t, "conn_A", models.EventMessageSeen, models.StatusUpdate{ID: 1})
	settle()

	late := newMockClient("conn_late")
	hub.RegisterCh <- late
	settle()

	events := EventsNamed(late.DrainEvents(), models.EventChatHistory)
	require.Len(t, events, 1)

	var replay []models.ChatMessage
	require.NoError(t, json.Unmarshal(events[0].Data, &replay))
	require.Len(t, replay, 2)
	assert.Equal(t, "first", replay[0].Body)
	assert.Equal(t, "second", replay[1].Body)
	// Replay carries current statuses, not historical ones.
	assert.Equal(t, models.StatusSeen, replay[0].Status)
	assert.Equal(t, models.StatusSent, replay[1].Status)
}

func TestManager_UnknownEventIgnored(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	clientA := newMockClient("conn_A")
	hub.RegisterCh <- clientA
	settle()
	clientA.DrainEvents()

	hub.IncomingCh <- chathub.Inbound{ConnID: "conn_A", Event: models.Event{Event: "no such event", Data: json.RawMessage(`{}`)}}
	settle()

	assert.Empty(t, clientA.DrainEvents())
	assert.Contains(t, hub.Clients, "conn_A")
}
