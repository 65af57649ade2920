package ports

import "github.com/hive-corporation/phishwatch/internal/core/domain"

// Notifier defines the interface for sending notifications to external systems
type Notifier interface {
	// NotifyCriticalURL sends a notification for a URL assessed at or above
	// the configured alert level
	NotifyCriticalURL(a domain.Assessment) error
}
