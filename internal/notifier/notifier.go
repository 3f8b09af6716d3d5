package notifier

import (
	"context"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/logger"
)

// Event is the popup payload emitted for every new unlock.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rank        string    `json:"rank"`
	Points      int       `json:"points"`
	XPReward    int       `json:"xp_reward"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

type Notifier interface {
	NotifyAchievement(ctx context.Context, event Event) error
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(event Event)
}

// Dispatcher fans events out to notifiers on a background goroutine per
// event. Delivery failures are logged and otherwise ignored.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       *logger.Logger
}

func NewDispatcher(log *logger.Logger, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{timeout: 10 * time.Second, log: log.With("service", "NotificationDispatcher")}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

func (d *Dispatcher) Publish(event Event) {
	if len(d.notifiers) == 0 {
		return
	}
	go d.deliver(event)
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	for _, n := range d.notifiers {
		if err := n.NotifyAchievement(ctx, event); err != nil {
			d.log.Warn("achievement notification failed", "achievement", event.ID, "user_id", event.UserID, "error", err)
		}
	}
}

// Recorder keeps every published event in memory. Used by the harness and
// tests to observe notifications synchronously.
type Recorder struct {
	events chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Publish(event Event) {
	select {
	case r.events <- event:
	default:
	}
}

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
