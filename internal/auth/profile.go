package auth

import (
	"context"
	"fmt"

	"github.com/fakeyudi/testgen/internal/tokenstore"
)

// ProfileUpdate is the body of PUT /api/v1/users/{id}.
type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UpdateProfile changes the logged-in user's account and rewrites the
// persisted user record with the new values.
func (m *Manager) UpdateProfile(ctx context.Context, p ProfileUpdate) error {
	s := m.Session()
	if !s.Authenticated {
		return ErrNotAuthenticated
	}
	userID := s.UserID
	if userID == "" {
		if u := m.StoredUser(); u != nil {
			userID = u.UserID
		}
	}
	if userID == "" {
		return fmt.Errorf("updating profile: no user id on record")
	}

	var resp profileResponse
	if err := m.backend.Put(ctx, UsersPath+"/"+userID, p, &resp); err != nil {
		return fmt.Errorf("Failed to update profile: %w", err)
	}
	if resp.UserID == "" {
		resp.UserID = userID
	}
	if resp.Username == "" {
		resp.Username = p.Username
	}

	data := &tokenstore.UserData{UserID: resp.UserID, Username: resp.Username, Password: p.Password}
	if err := m.store.SetUserData(data); err != nil {
		return fmt.Errorf("persisting user data: %w", err)
	}

	s.UserID = resp.UserID
	s.Username = resp.Username
	m.set(s)
	return nil
}
