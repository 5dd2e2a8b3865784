package handler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// EventKind identifies a state change.
type EventKind uint8

const (
	EventGroupSet EventKind = iota
	EventGroupReverted
	EventUserSet
	EventUserReverted
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventGroupSet:
		return "GroupSet"
	case EventGroupReverted:
		return "GroupReverted"
	case EventUserSet:
		return "UserSet"
	case EventUserReverted:
		return "UserReverted"
	default:
		return "Unknown"
	}
}

// Event describes a state change made by Apply or Revert.
//
// Group is set for group events and User for user events. After a revert
// that removed the state, both are nil.
type Event struct {
	ID            uuid.UUID
	Kind          EventKind
	TransactionID string
	Subject       string
	Position      ledger.Position

	Group *permission.Group
	User  *permission.UserPermissions
}

// EventPublisher receives handler events. PublishEvent is called
// synchronously from Apply and Revert and must not block.
type EventPublisher interface {
	PublishEvent(ev Event)
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(ev Event)

// PublishEvent calls f(ev).
func (f EventPublisherFunc) PublishEvent(ev Event) {
	f(ev)
}

// EventLog is an EventPublisher that keeps the most recent events.
type EventLog struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

// NewEventLog creates a log holding at most limit events. A limit of zero
// keeps everything.
func NewEventLog(limit int) *EventLog {
	return &EventLog{limit: limit}
}

// PublishEvent records ev.
func (l *EventLog) PublishEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
	if l.limit > 0 && len(l.events) > l.limit {
		l.events = l.events[len(l.events)-l.limit:]
	}
}

// Events returns a copy of the recorded events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (b *base) publish(kind EventKind, tx *ledger.Transaction, group *permission.Group, user *permission.UserPermissions) {
	if b.events == nil {
		return
	}
	b.events.PublishEvent(Event{
		ID:            uuid.New(),
		Kind:          kind,
		TransactionID: tx.ID,
		Subject:       tx.Subject(),
		Position:      tx.Position,
		Group:         group,
		User:          user,
	})
}
