// Package notify delivers operator notifications. Delivery is best effort:
// callers log failures and never let them fail the pipeline.
package notify

import "context"

// Severity classifies a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notifier sends a message to the operator channel.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity) error
}

// NopNotifier discards everything. Used when no channel is configured and in
// tests.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, message string, severity Severity) error {
	return nil
}

var _ Notifier = NopNotifier{}
