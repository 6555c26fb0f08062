package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// StreamIDRegex validates stream ID format
	StreamIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	// ProfileNameRegex validates profile name format
	ProfileNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 ._-]+$`)
)

// ValidateStreamID validates a gateway stream/source name.
func ValidateStreamID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("stream ID is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("stream ID is too long (max 128 characters)")
	}
	if !StreamIDRegex.MatchString(id) {
		return fmt.Errorf("stream ID contains invalid characters (only letters, numbers, ., _, - allowed)")
	}
	return nil
}

// ValidateGatewayURL validates the streaming gateway base URL.
func ValidateGatewayURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("gateway URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("gateway URL scheme must be ws, wss, http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("gateway URL must include a host")
	}
	return nil
}

// ValidateProfileName validates a saved server profile name.
func ValidateProfileName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("profile name is too long (max 64 characters)")
	}
	if !ProfileNameRegex.MatchString(name) {
		return fmt.Errorf("profile name contains invalid characters")
	}
	return nil
}
