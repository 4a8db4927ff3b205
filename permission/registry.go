package permission

import (
	"errors"
	"sync"
)

// Registry assigns each permission name a stable bit position within a
// [Mask64]. Registration happens during construction; the registry must be
// frozen before first use.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	frozen    bool
}

// NewRegistry creates an empty permission registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
	}
}

// Register assigns the next available bit to the named permission and
// returns its index. Fails after [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("permission registry frozen")
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered: " + name)
	}

	bit := len(r.nameToBit)
	if bit >= 64 {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = bit
	return bit, nil
}

// Bit returns the bit index for the named permission, or false when the
// name was never registered. Unknown names deliberately have no bit so the
// capability gate stays closed-world.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
