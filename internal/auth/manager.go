// Package auth owns the client session: the authenticated/unauthenticated
// state, the bearer token applied to the API client and its persistence.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/tokenstore"
)

// Backend endpoints used by the session manager.
const (
	LoginPath    = "/api/v1/auth/login"
	RegisterPath = "/api/v1/users"
	UsersPath    = "/api/v1/users"
)

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Backend is the part of api.Client the manager needs.
type Backend interface {
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	SetToken(token string)
}

// Session is a snapshot of the current authentication state.
type Session struct {
	Token         string
	UserID        string
	Username      string
	Authenticated bool
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
}

// Manager drives login, registration and logout. Create one per process and
// hand it to whatever needs the session.
type Manager struct {
	backend Backend
	store   tokenstore.Store

	mu      sync.Mutex
	session Session
	subs    map[int]func(Session)
	nextSub int
}

// NewManager returns a Manager in the Unauthenticated state. Call CheckAuth
// to pick up a token persisted by an earlier run.
func NewManager(backend Backend, store tokenstore.Store) *Manager {
	return &Manager{
		backend: backend,
		store:   store,
		subs:    make(map[int]func(Session)),
	}
}

// Register creates an account and logs it in.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.authenticate(ctx, RegisterPath, username, password); err != nil {
		return fmt.Errorf("Failed to register: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.authenticate(ctx, LoginPath, username, password); err != nil {
		return fmt.Errorf("Failed to login: %w", err)
	}
	return nil
}

// authenticate posts credentials to path and, on success, applies and
// persists the returned token. On any failure the state is left as it was.
func (m *Manager) authenticate(ctx context.Context, path, username, password string) error {
	var resp authResponse
	if err := m.backend.Post(ctx, path, credentials{Username: username, Password: password}, &resp); err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return errors.New("server returned no access token")
	}

	// The token goes last: a stored token alone makes CheckAuth succeed.
	prev := m.StoredUser()
	data := &tokenstore.UserData{UserID: resp.UserID, Username: username, Password: password}
	if err := m.store.SetUserData(data); err != nil {
		return fmt.Errorf("persisting user data: %w", err)
	}
	if err := m.store.SetToken(resp.AccessToken); err != nil {
		if rerr := m.store.SetUserData(prev); rerr != nil {
			logger.WarnWithFields("restoring user data", logger.Fields{"error": rerr.Error()})
		}
		return fmt.Errorf("persisting token: %w", err)
	}

	m.backend.SetToken(resp.AccessToken)
	m.set(Session{
		Token:         resp.AccessToken,
		UserID:        resp.UserID,
		Username:      username,
		Authenticated: true,
	})
	logger.InfoWithFields("authenticated", logger.Fields{"user_id": resp.UserID, "username": username})
	return nil
}

// Logout clears the in-memory token and overwrites the persisted token and
// user data with empty values. Calling it again is a no-op.
func (m *Manager) Logout() error {
	m.backend.SetToken("")
	if err := m.store.SetToken(""); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	if err := m.store.SetUserData(nil); err != nil {
		return fmt.Errorf("clearing user data: %w", err)
	}
	m.set(Session{})
	return nil
}

// CheckAuth reads the persisted token. When one is present it is applied to
// the API client and the session becomes Authenticated.
func (m *Manager) CheckAuth() (bool, error) {
	token, err := m.store.Token()
	if err != nil {
		return false, fmt.Errorf("reading token: %w", err)
	}
	if token == "" {
		m.backend.SetToken("")
		m.set(Session{})
		return false, nil
	}

	s := Session{Token: token, Authenticated: true}
	if u := m.StoredUser(); u != nil {
		s.UserID = u.UserID
		s.Username = u.Username
	}
	m.backend.SetToken(token)
	m.set(s)
	return true, nil
}

// IsAuthenticated reports whether a token is held in memory. It does not
// consult the backend or the store.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Token != ""
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// StoredUser returns the persisted user record, or nil when there is none.
// A record that cannot be decoded is logged and treated as absent.
func (m *Manager) StoredUser() *tokenstore.UserData {
	u, err := m.store.UserData()
	if err == nil {
		return u
	}
	if !errors.Is(err, tokenstore.ErrNoUserData) {
		logger.WarnWithFields("ignoring stored user data", logger.Fields{"error": err.Error()})
	}
	return nil
}

// Subscribe registers fn to be called with the new session after every state
// change. The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// set replaces the session and notifies subscribers when it changed.
// Subscribers run outside the lock.
func (m *Manager) set(s Session) {
	m.mu.Lock()
	if m.session == s {
		m.mu.Unlock()
		return
	}
	m.session = s
	fns := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
