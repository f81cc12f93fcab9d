// Package notify holds the user-facing notices raised by the application
// service. One Center is created per process and passed to whoever needs it.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// maxNotices bounds the backlog; the oldest notices are dropped first.
const maxNotices = 50

// Notice is a single toast.
type Notice struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	Created time.Time `json:"created"`
}

// Notifier is what the membership service depends on.
type Notifier interface {
	Success(title, message string)
	Error(title, message string)
	Info(title, message string)
}

// Center keeps the current notices and fans changes out to subscribers.
type Center struct {
	mu      sync.Mutex
	notices []Notice
	subs    map[int]func([]Notice)
	nextSub int
	now     func() time.Time
}

func NewCenter() *Center {
	return &Center{subs: make(map[int]func([]Notice)), now: time.Now}
}

// Show adds a notice and returns its id.
func (c *Center) Show(level Level, title, message string) string {
	n := Notice{ID: uuid.NewString(), Level: level, Title: title, Message: message, Created: c.now()}
	c.mu.Lock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = append([]Notice(nil), c.notices[len(c.notices)-maxNotices:]...)
	}
	c.mu.Unlock()
	c.publish()
	return n.ID
}

func (c *Center) Success(title, message string) { c.Show(LevelSuccess, title, message) }

func (c *Center) Error(title, message string) { c.Show(LevelError, title, message) }

func (c *Center) Info(title, message string) { c.Show(LevelInfo, title, message) }

// Remove drops the notice with id; unknown ids are ignored.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	kept := c.notices[:0]
	removed := false
	for _, n := range c.notices {
		if n.ID == id {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	c.notices = kept
	c.mu.Unlock()
	if removed {
		c.publish()
	}
}

// Snapshot returns the current notices, oldest first.
func (c *Center) Snapshot() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Subscribe registers fn for every change and returns an unsubscribe func.
// fn is called without the Center's lock held.
func (c *Center) Subscribe(fn func([]Notice)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Center) publish() {
	c.mu.Lock()
	snapshot := append([]Notice(nil), c.notices...)
	subs := make([]func([]Notice), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Success(string, string) {}

func (Discard) Error(string, string) {}

func (Discard) Info(string, string) {}
