package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a short user-facing message, the equivalent of a toast.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

// Notifiers delivers to each notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, x := range ns {
		if x != nil {
			x.Notify(n)
		}
	}
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Variant == VariantDestructive {
		log.Warn(n.Title, "description", n.Description)
		return
	}
	log.Info(n.Title, "description", n.Description)
}

const DefaultFeedSize = 50

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	next  int
	full  bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]Notification, size)}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// List returns up to limit notifications, oldest first. A limit <= 0 returns
// everything retained.
func (f *Feed) List(limit int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Notification
	if f.full {
		out = append(out, f.items[f.next:]...)
	}
	out = append(out, f.items[:f.next]...)

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func newNotification(title, description string, v Variant) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Variant:     v,
		At:          time.Now().UTC(),
	}
}
