package civiauth

// CanAccess reports whether the current account may perform the named
// capability. The gate is closed-world: it answers false for every state
// except StateActive, for unknown roles, and for permission names that were
// never registered — never default-allow.
func (s *Store) CanAccess(permissionName string) bool {
	s.mu.Lock()
	state := s.snap.AccountState
	var role Role = RoleUnknown
	if s.snap.User != nil {
		role = s.snap.User.Role
	}
	s.mu.Unlock()

	if state != StateActive {
		return false
	}
	return s.roles.Grant(role.String(), permissionName)
}

// IsAuthenticated reports whether a session is present, regardless of how
// far onboarding has progressed.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Session != nil
}

// IsAdmin reports whether the signed-in identity carries the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.User != nil && s.snap.User.Role == RoleAdmin
}

// IsActive reports whether the account has resolved to StateActive.
func (s *Store) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.AccountState == StateActive
}
