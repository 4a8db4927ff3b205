package permission

import (
	"errors"
	"sync"
)

// RoleSet composes per-role permission masks from a shared [Registry].
// Like the registry it is built once and frozen before use.
type RoleSet struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

// NewRoleSet creates an empty role set over the given registry.
func NewRoleSet(registry *Registry) *RoleSet {
	return &RoleSet{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole builds a mask from the named permissions and stores it under
// the role name. Every permission must already exist in the registry.
func (rs *RoleSet) RegisterRole(roleName string, permissionNames []string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen {
		return errors.New("role set frozen")
	}
	if roleName == "" {
		return errors.New("role name cannot be empty")
	}
	if _, exists := rs.roles[roleName]; exists {
		return errors.New("role already registered: " + roleName)
	}

	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rs.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}

	rs.roles[roleName] = mask
	return nil
}

// Mask returns the mask for the named role, or false when the role was
// never registered.
func (rs *RoleSet) Mask(roleName string) (Mask64, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	mask, ok := rs.roles[roleName]
	return mask, ok
}

// Grant reports whether the named role holds the named permission.
// Unknown roles and unknown permissions are both denied.
func (rs *RoleSet) Grant(roleName, permissionName string) bool {
	bit, ok := rs.registry.Bit(permissionName)
	if !ok {
		return false
	}
	mask, ok := rs.Mask(roleName)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Freeze prevents further role registrations.
func (rs *RoleSet) Freeze() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.frozen = true
}

// Count returns the number of registered roles.
func (rs *RoleSet) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.roles)
}
