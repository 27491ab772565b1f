package chathub

import "chatcall/backend/internal/models"

// CallState tracks where a connection appears to be in a call negotiation.
// The server forwards signaling blindly; these states are derived from the
// traffic for logs and metrics only and never gate forwarding.
type CallState string

const (
	CallIdle           CallState = "idle"
	CallOfferSent      CallState = "offer_sent"
	CallAwaitingAnswer CallState = "awaiting_answer"
	CallConnected      CallState = "connected"
	CallEnded          CallState = "ended"
)

// SignalKind maps a wire event name to its signaling kind ("offer",
// "answer", "candidate"). ok is false for non-signaling events.
func SignalKind(event string) (kind string, ok bool) {
	switch event {
	case models.EventOffer:
		return "offer", true
	case models.EventAnswer:
		return "answer", true
	case models.EventCandidate:
		return "candidate", true
	}
	return "", false
}

// Transition is one observed state change of a connection's negotiation.
type Transition struct {
	ConnID string
	From   CallState
	To     CallState
}

// SignalRelay observes the offer/answer/candidate stream. It holds no call
// identity: negotiations are scoped only by "everyone except the sender",
// which is the historical contract. Concurrent unrelated call pairs on one
// server are therefore not isolated from each other.
type SignalRelay struct {
	states map[string]CallState
}

func NewSignalRelay() *SignalRelay {
	return &SignalRelay{states: make(map[string]CallState)}
}

// StateOf returns the observed negotiation state of a connection.
func (r *SignalRelay) StateOf(connID string) CallState {
	if s, ok := r.states[connID]; ok {
		return s
	}
	return CallIdle
}

// Observe records a signaling message from origin and returns the state
// transitions it implies. Duplicate, late, and out-of-order messages are
// tolerated: a message that implies no change returns no transitions.
func (r *SignalRelay) Observe(origin, kind string) []Transition {
	switch kind {
	case "offer":
		// An offer puts its sender into offer_sent and flags everyone
		// still idle as having an answer to produce.
		var ts []Transition
		ts = r.transition(ts, origin, CallOfferSent)
		for connID, state := range r.states {
			if connID != origin && state == CallIdle {
				ts = r.transition(ts, connID, CallAwaitingAnswer)
			}
		}
		return ts
	case "answer":
		// The answerer connects; so does whoever had an offer in flight.
		var ts []Transition
		ts = r.transition(ts, origin, CallConnected)
		for connID, state := range r.states {
			if connID != origin && state == CallOfferSent {
				ts = r.transition(ts, connID, CallConnected)
			}
		}
		return ts
	}
	// Candidates carry no state.
	return nil
}

// Track registers a connection as idle so that later offers can move it to
// awaiting_answer.
func (r *SignalRelay) Track(connID string) {
	if _, ok := r.states[connID]; !ok {
		r.states[connID] = CallIdle
	}
}

// Forget drops a connection's negotiation state on disconnect and reports
// the final transition, if the connection was mid-call.
func (r *SignalRelay) Forget(connID string) []Transition {
	state, ok := r.states[connID]
	delete(r.states, connID)
	if !ok || state == CallIdle {
		return nil
	}
	return []Transition{{ConnID: connID, From: state, To: CallEnded}}
}

func (r *SignalRelay) transition(ts []Transition, connID string, to CallState) []Transition {
	from := r.StateOf(connID)
	if from == to {
		return ts
	}
	r.states[connID] = to
	return append(ts, Transition{ConnID: connID, From: from, To: to})
}
