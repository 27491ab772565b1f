package chathub

import (
	"errors"
	"time"

	"chatcall/backend/internal/models"
)

// ErrNotFound is returned for a status update referencing an unknown message.
var ErrNotFound = errors.New("message not found")

// HistoryStore is the in-memory, append-only chat log. Messages are appended
// once, have their status mutated in place, and are never deleted. Nothing
// survives a restart.
//
// Like PresenceRegistry, the store is only touched from the hub run
// goroutine and carries no locking of its own.
type HistoryStore struct {
	log []models.ChatMessage

	// replayLimit caps how many trailing messages Snapshot returns.
	// Zero means the full log, matching the historical behavior.
	replayLimit int
}

func NewHistoryStore(replayLimit int) *HistoryStore {
	return &HistoryStore{replayLimit: replayLimit}
}

// Append stores msg with status "sent" and returns it with its assigned ID,
// the 1-based log position. Append never rejects.
func (s *HistoryStore) Append(msg models.ChatMessage) models.ChatMessage {
	msg.ID = uint(len(s.log) + 1)
	msg.Status = models.StatusSent
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	s.log = append(s.log, msg)
	return msg
}

// MarkSeen transitions the referenced message to "seen". Marking an
// already-seen message succeeds; the caller still broadcasts the update,
// so the notification is deliberately not idempotent even though the state
// transition is.
func (s *HistoryStore) MarkSeen(id uint) error {
	if id == 0 || int(id) > len(s.log) {
		return ErrNotFound
	}
	s.log[id-1].Status = models.StatusSeen
	return nil
}

// Snapshot returns the log in append order with current statuses, capped to
// the replay window when one is configured. The returned slice is a copy.
func (s *HistoryStore) Snapshot() []models.ChatMessage {
	start := 0
	if s.replayLimit > 0 && len(s.log) > s.replayLimit {
		start = len(s.log) - s.replayLimit
	}
	out := make([]models.ChatMessage, len(s.log)-start)
	copy(out, s.log[start:])
	return out
}

// Len returns the number of messages appended so far.
func (s *HistoryStore) Len() int {
	return len(s.log)
}
