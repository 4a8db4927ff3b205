package civiauth

import (
	"errors"

	internalaudit "github.com/citizenhub/civiauth/internal/audit"
	"github.com/citizenhub/civiauth/permission"
	"go.uber.org/zap"
)

// Builder assembles a [Store]. A builder is single-use; Build fails on the
// second call.
type Builder struct {
	config    Config
	backend   Backend
	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the identity backend the store delegates to. Required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatching.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithResidentPermissions replaces the resident permission set.
func (b *Builder) WithResidentPermissions(perms []string) *Builder {
	b.config.Permissions.ResidentPermissions = append([]string(nil), perms...)
	return b
}

// WithAdminPermissions replaces the admin permission set.
func (b *Builder) WithAdminPermissions(perms []string) *Builder {
	b.config.Permissions.AdminPermissions = append([]string(nil), perms...)
	return b
}

// Build validates the configuration, freezes the permission registry and
// role set, and returns a store in [StateLoading]. Call [Store.Initialize]
// to bootstrap the snapshot.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.backend == nil {
		return nil, errors.New("backend required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The two sets may overlap; each name gets exactly one bit.
	registry := permission.NewRegistry()
	registered := make(map[string]struct{})
	for _, p := range append(append([]string(nil), cfg.Permissions.ResidentPermissions...), cfg.Permissions.AdminPermissions...) {
		if _, dup := registered[p]; dup {
			continue
		}
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
		registered[p] = struct{}{}
	}
	registry.Freeze()

	roles := permission.NewRoleSet(registry)
	if err := roles.RegisterRole(RoleResident.String(), cfg.Permissions.ResidentPermissions); err != nil {
		return nil, err
	}
	// Admins hold the union of both fixed sets.
	adminPerms := append(append([]string(nil), cfg.Permissions.AdminPermissions...), cfg.Permissions.ResidentPermissions...)
	if err := roles.RegisterRole(RoleAdmin.String(), adminPerms); err != nil {
		return nil, err
	}
	roles.Freeze()

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &Store{
		config:  cfg,
		backend: b.backend,
		roles:   roles,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics.Enabled),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		subscribers: make(map[int]func(Snapshot)),
	}
	store.snap = Snapshot{
		AccountState: StateLoading,
		IsLoading:    true,
	}

	b.built = true

	return store, nil
}
