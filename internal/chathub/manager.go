package chathub

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"chatcall/backend/internal/models"
	"chatcall/backend/internal/monitoring"
)

// Inbound is one decoded frame together with the connection it came from.
type Inbound struct {
	ConnID string
	Event  models.Event
}

// ManagerService is the hub. It owns the client map, the presence registry,
// the history log and the signaling relay, and it is the only goroutine that
// mutates any of them: registrations, disconnects, inbound frames and
// bridged events all funnel through Run's select loop.
type ManagerService struct {
	Clients map[string]Client

	IncomingCh   chan Inbound
	RegisterCh   chan Client
	UnregisterCh chan Client
	ForeignCh    chan models.Event

	Presence *PresenceRegistry
	History  *HistoryStore
	Relay    *SignalRelay

	Bridge  *Bridge
	Metrics *monitoring.Metrics
	Log     zerolog.Logger
}

func NewManagerService(history *HistoryStore, metrics *monitoring.Metrics, log zerolog.Logger) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		IncomingCh:   make(chan Inbound),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		ForeignCh:    make(chan models.Event),
		Presence:     NewPresenceRegistry(),
		History:      history,
		Relay:        NewSignalRelay(),
		Metrics:      metrics,
		Log:          log,
	}
}

// SetBridge attaches a cross-instance event bridge. Must be called before Run.
func (m *ManagerService) SetBridge(b *Bridge) {
	m.Bridge = b
}

// Run is the hub main loop.
func (m *ManagerService) Run() {
	if m.Bridge != nil {
		m.Bridge.Listen(m.ForeignCh)
	}

	for {
		select {
		case c := <-m.RegisterCh:
			m.register(c)
		case c := <-m.UnregisterCh:
			m.unregister(c)
		case in := <-m.IncomingCh:
			m.dispatch(in)
		case ev := <-m.ForeignCh:
			// Broadcast from another instance; deliver locally without
			// republishing it.
			m.deliverAll(ev)
		}
	}
}

// register adds the client and replays chat history to it. Both happen in
// one loop step, so no broadcast processed later can slip in front of the
// replay on this client's send channel.
func (m *ManagerService) register(c Client) {
	m.Clients[c.GetConnID()] = c
	m.Relay.Track(c.GetConnID())
	m.Metrics.Connections.Set(float64(len(m.Clients)))

	ev, err := models.NewEvent(models.EventChatHistory, m.History.Snapshot())
	if err != nil {
		m.Log.Error().Err(err).Msg("encoding history replay")
	} else {
		m.sendTo(c, ev)
	}

	m.Log.Info().Str("conn", c.GetConnID()).Int("clients", len(m.Clients)).Msg("connection registered")
}

// unregister tears the connection down: registry state goes synchronously,
// and an offline presence event goes out if this was the name's last
// connection. Safe to call twice; the second call is a no-op.
func (m *ManagerService) unregister(c Client) {
	connID := c.GetConnID()
	if _, ok := m.Clients[connID]; !ok {
		return
	}
	delete(m.Clients, connID)
	c.Close()

	m.recordTransitions(m.Relay.Forget(connID))

	name, offline := m.Presence.Unbind(connID)
	m.Metrics.Connections.Set(float64(len(m.Clients)))
	m.Metrics.OnlineIdentities.Set(float64(m.Presence.OnlineCount()))

	if offline {
		ev, err := models.NewEvent(models.EventUserStatus, models.UserStatus{User: name, Status: models.PresenceOffline})
		if err == nil {
			m.broadcastAll(ev)
		}
	}

	m.Log.Info().Str("conn", connID).Str("name", name).Bool("offline", offline).Msg("connection unregistered")
}

func (m *ManagerService) dispatch(in Inbound) {
	if _, ok := m.Clients[in.ConnID]; !ok {
		// Frame raced with the disconnect; nothing to do.
		return
	}

	switch in.Event.Event {
	case models.EventSetName:
		m.handleSetName(in)
	case models.EventChatMessage:
		m.handleChatMessage(in)
	case models.EventMessageSeen:
		m.handleMessageSeen(in)
	default:
		if kind, ok := SignalKind(in.Event.Event); ok {
			m.handleSignal(in, kind)
			return
		}
		m.Log.Debug().Str("event", in.Event.Event).Str("conn", in.ConnID).Msg("ignoring unknown event")
	}
}

func (m *ManagerService) handleSetName(in Inbound) {
	var req models.NameRequest
	if err := json.Unmarshal(in.Event.Data, &req); err != nil || req.Name == "" {
		m.Log.Debug().Str("conn", in.ConnID).Msg("ignoring bad set name payload")
		return
	}

	first, err := m.Presence.Bind(in.ConnID, req.Name)
	if errors.Is(err, ErrAlreadyBound) {
		m.Log.Debug().Str("conn", in.ConnID).Msg("ignoring repeated set name")
		return
	}
	m.Metrics.OnlineIdentities.Set(float64(m.Presence.OnlineCount()))

	if c, ok := m.Clients[in.ConnID]; ok {
		ack, err := models.NewEvent(models.EventNameSet, models.NameRequest{Name: req.Name})
		if err == nil {
			m.sendTo(c, ack)
		}
	}

	// Online is announced on every bind, not just the name's first
	// connection; clients rely on the re-announcement after a reload.
	status, err := models.NewEvent(models.EventUserStatus, models.UserStatus{User: req.Name, Status: models.PresenceOnline})
	if err == nil {
		m.broadcastExcept(in.ConnID, status)
	}

	m.Log.Info().Str("conn", in.ConnID).Str("name", req.Name).Bool("first", first).Msg("name bound")
}

func (m *ManagerService) handleChatMessage(in Inbound) {
	var msg models.ChatMessage
	if err := json.Unmarshal(in.Event.Data, &msg); err != nil {
		m.Log.Debug().Err(err).Str("conn", in.ConnID).Msg("ignoring bad chat payload")
		return
	}
	if msg.Sender == "" {
		if name, ok := m.Presence.NameOf(in.ConnID); ok {
			msg.Sender = name
		}
	}

	stored := m.History.Append(msg)
	m.Metrics.ChatMessages.Inc()
	m.Metrics.HistoryLength.Set(float64(m.History.Len()))

	ev, err := models.NewEvent(models.EventChatMessage, stored)
	if err != nil {
		m.Log.Error().Err(err).Msg("encoding chat broadcast")
		return
	}
	// Chat goes to everyone, sender included: the sender's UI renders the
	// message from the broadcast, not from local echo.
	m.broadcastAll(ev)
}

func (m *ManagerService) handleMessageSeen(in Inbound) {
	var upd models.StatusUpdate
	if err := json.Unmarshal(in.Event.Data, &upd); err != nil {
		m.Log.Debug().Err(err).Str("conn", in.ConnID).Msg("ignoring bad seen payload")
		return
	}

	if err := m.History.MarkSeen(upd.ID); err != nil {
		// Unknown reference: absorb, no broadcast.
		m.Log.Debug().Uint("id", upd.ID).Str("conn", in.ConnID).Msg("seen mark for unknown message")
		return
	}
	m.Metrics.SeenUpdates.Inc()

	ev, err := models.NewEvent(models.EventUpdateStatus, models.StatusUpdate{ID: upd.ID, Status: models.StatusSeen})
	if err == nil {
		m.broadcastAll(ev)
	}
}

// handleSignal forwards the envelope unmodified to everyone except the
// sender. The payload is never inspected.
func (m *ManagerService) handleSignal(in Inbound, kind string) {
	m.Metrics.SignalsRelayed.WithLabelValues(kind).Inc()
	m.recordTransitions(m.Relay.Observe(in.ConnID, kind))
	m.broadcastExcept(in.ConnID, in.Event)
}

func (m *ManagerService) recordTransitions(ts []Transition) {
	for _, t := range ts {
		m.Metrics.CallTransitions.WithLabelValues(string(t.To)).Inc()
		m.Log.Debug().Str("conn", t.ConnID).Str("from", string(t.From)).Str("to", string(t.To)).Msg("call state")
	}
}

// broadcastAll delivers ev to every live connection and mirrors it to the
// bridge, if one is attached.
func (m *ManagerService) broadcastAll(ev models.Event) {
	m.publish(ev)
	m.deliverAll(ev)
}

// broadcastExcept delivers ev to every live connection other than origin.
// The bridge copy is still published: on a foreign instance everyone is
// "other than origin".
func (m *ManagerService) broadcastExcept(origin string, ev models.Event) {
	m.publish(ev)
	var dead []Client
	for connID, c := range m.Clients {
		if connID == origin {
			continue
		}
		if !m.deliver(c, ev) {
			dead = append(dead, c)
		}
	}
	m.reap(dead)
}

func (m *ManagerService) deliverAll(ev models.Event) {
	var dead []Client
	for _, c := range m.Clients {
		if !m.deliver(c, ev) {
			dead = append(dead, c)
		}
	}
	m.reap(dead)
}

// sendTo delivers to a single connection (history replay, name ack).
func (m *ManagerService) sendTo(c Client, ev models.Event) {
	if !m.deliver(c, ev) {
		m.unregister(c)
	}
}

// deliver enqueues without blocking. A full send channel means the client
// stopped draining; it is reported dead rather than stalling the hub.
func (m *ManagerService) deliver(c Client, ev models.Event) bool {
	select {
	case c.GetSendChannel() <- ev:
		return true
	default:
		return false
	}
}

func (m *ManagerService) reap(dead []Client) {
	for _, c := range dead {
		m.Log.Warn().Str("conn", c.GetConnID()).Msg("dropping unresponsive connection")
		m.unregister(c)
	}
}

func (m *ManagerService) publish(ev models.Event) {
	if m.Bridge != nil {
		m.Bridge.Publish(ev)
	}
}
