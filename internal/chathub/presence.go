package chathub

import "errors"

// ErrAlreadyBound is returned when a connection declares a name twice.
// The first declaration wins; later ones are ignored.
var ErrAlreadyBound = errors.New("connection already bound to a name")

// PresenceRegistry maps self-declared display names to their live connection
// sets. A name is online while its set is non-empty; one user on several
// tabs holds several connections under the same name.
//
// The registry is not safe for concurrent use on its own: all mutation goes
// through the hub's run goroutine, which is the single serialization
// boundary for shared state.
type PresenceRegistry struct {
	names map[string]string              // connID -> name
	conns map[string]map[string]struct{} // name -> connID set
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		names: make(map[string]string),
		conns: make(map[string]map[string]struct{}),
	}
}

// Bind associates name with connID and reports whether this connection is
// the first one for that name. A connection can bind at most once.
func (r *PresenceRegistry) Bind(connID, name string) (first bool, err error) {
	if _, ok := r.names[connID]; ok {
		return false, ErrAlreadyBound
	}
	r.names[connID] = name

	set, ok := r.conns[name]
	if !ok {
		set = make(map[string]struct{})
		r.conns[name] = set
	}
	set[connID] = struct{}{}
	return len(set) == 1, nil
}

// Unbind removes connID from its name's set. It reports the bound name and
// whether the removal emptied the set, i.e. the identity went offline.
// Unbinding a connection that never declared a name is a no-op.
func (r *PresenceRegistry) Unbind(connID string) (name string, offline bool) {
	name, ok := r.names[connID]
	if !ok {
		return "", false
	}
	delete(r.names, connID)

	set := r.conns[name]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, name)
		return name, true
	}
	return name, false
}

// NameOf returns the name bound to connID, if any.
func (r *PresenceRegistry) NameOf(connID string) (string, bool) {
	name, ok := r.names[connID]
	return name, ok
}

// IsOnline reports whether name has at least one live connection.
func (r *PresenceRegistry) IsOnline(name string) bool {
	return len(r.conns[name]) > 0
}

// OnlineCount returns the number of distinct online names.
func (r *PresenceRegistry) OnlineCount() int {
	return len(r.conns)
}
