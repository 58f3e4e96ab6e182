// Package notify delivers user-visible failure notifications. Every failure
// produces exactly one notification with a short title and a specific reason;
// silent autosave failures never reach this package.
package notify

import (
	"log"
	"time"
)

type Notification struct {
	Title     string    `json:"title"`
	Reason    string    `json:"reason"`
	Project   string    `json:"project,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is the sink the report session pushes failures into.
type Notifier interface {
	Notify(project, title, reason string)
}

// LogNotifier writes notifications to the server log. Used standalone in
// tests and as the fallback sink inside the websocket hub.
type LogNotifier struct{}

func (LogNotifier) Notify(project, title, reason string) {
	log.Printf("[Notify] %s: %s (project=%s)", title, reason, project)
}
