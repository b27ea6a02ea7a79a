package engine

import (
	"log/slog"
	"sync"

	"github.com/0xthrpw/remand/internal/asset"
)

// EventKind names a successful lifecycle transition.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventAccepted  EventKind = "accepted"
	EventRescinded EventKind = "rescinded"
	EventRepaid    EventKind = "repaid"
	EventRemanded  EventKind = "remanded"
)

// Event is the notification payload emitted after each successful
// transition. Key plus Seq is enough to recompute the offer key
// independently from the creation payload.
type Event struct {
	Kind  EventKind
	Key   string
	Seq   int64
	Token string // correlation token for the triggering operation

	Owner  asset.Address
	Target asset.Target

	// Acceptor and AcceptedAt are set on acceptance events only.
	Acceptor   asset.Address
	AcceptedAt int64
}

// Notifier receives lifecycle events. Implementations must not call back
// into the engine; they run inside the operation's critical section.
type Notifier interface {
	Notify(ev Event)
}

// LogNotifier reports events through slog.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ev Event) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("offer "+string(ev.Kind),
		"key", ev.Key,
		"seq", ev.Seq,
		"token", ev.Token,
		"owner", ev.Owner,
		"target", ev.Target.String(),
		"acceptor", ev.Acceptor,
		"accepted_at", ev.AcceptedAt,
	)
}

// Recorder captures events in memory for tests and the scenario harness.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// MultiNotifier fans an event out to several sinks in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}
