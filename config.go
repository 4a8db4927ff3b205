package civiauth

import (
	"errors"
	"time"
)

// Config carries the tunable sections of the session store. Configure it
// during construction; treat it as immutable afterwards.
type Config struct {
	Permissions PermissionsConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Fetch       FetchConfig
}

// PermissionsConfig declares the two fixed permission sets consulted by the
// capability gate. An admin role is granted the union of both sets; a
// resident role only the resident set.
type PermissionsConfig struct {
	ResidentPermissions []string
	AdminPermissions    []string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// FetchConfig bounds the identity+profile fetch issued by the store on its
// own behalf (event handling runs outside any caller context).
type FetchConfig struct {
	EventFetchTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Permissions: PermissionsConfig{
			ResidentPermissions: []string{
				"create_requests",
				"view_own_requests",
				"book_events",
				"borrow_items",
				"view_announcements",
				"manage_own_profile",
			},
			AdminPermissions: []string{
				"manage_users",
				"approve_accounts",
				"manage_requests",
				"manage_events",
				"manage_items",
				"publish_announcements",
				"view_reports",
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Fetch: FetchConfig{
			EventFetchTimeout: 10 * time.Second,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if len(c.Permissions.ResidentPermissions) == 0 {
		return errors.New("resident permission set must not be empty")
	}
	if len(c.Permissions.AdminPermissions) == 0 {
		return errors.New("admin permission set must not be empty")
	}

	seen := make(map[string]struct{})
	for _, p := range c.Permissions.ResidentPermissions {
		if p == "" {
			return errors.New("resident permission set contains an empty name")
		}
		if _, dup := seen[p]; dup {
			return errors.New("duplicate resident permission: " + p)
		}
		seen[p] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, p := range c.Permissions.AdminPermissions {
		if p == "" {
			return errors.New("admin permission set contains an empty name")
		}
		if _, dup := seen[p]; dup {
			return errors.New("duplicate admin permission: " + p)
		}
		seen[p] = struct{}{}
	}

	if len(c.Permissions.ResidentPermissions)+len(c.Permissions.AdminPermissions) > 64 {
		return errors.New("permission sets exceed mask width")
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	if c.Fetch.EventFetchTimeout < 0 {
		return errors.New("event fetch timeout must not be negative")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Permissions.ResidentPermissions = append([]string(nil), cfg.Permissions.ResidentPermissions...)
	out.Permissions.AdminPermissions = append([]string(nil), cfg.Permissions.AdminPermissions...)
	return out
}
