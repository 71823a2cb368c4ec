package alert

import (
	"context"
	"errors"
	"fmt"
)

// Notification is the data sent to alert destinations: either a strong
// directional consensus on an indicator or a newly hot topic.
type Notification struct {
	Kind       string   `json:"kind"` // "consensus" or "hot_topic"
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Indicator  string   `json:"indicator,omitempty"`
	Label      string   `json:"label,omitempty"`
	Direction  string   `json:"direction,omitempty"`
	BullishPct int      `json:"bullish_pct,omitempty"`
	Signals    int      `json:"signals,omitempty"`
	EventIDs   []string `json:"event_ids,omitempty"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
