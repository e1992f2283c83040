package preflight

import (
	"net/url"
	"strings"

	"convoy/internal/config"
)

// CheckNotificationsFromConfig summarises the ntfy configuration without
// sending anything. Use `convoy test-notify` for a live check.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: "Invalid ntfy topic URL"}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Host + parsed.Path}
}
