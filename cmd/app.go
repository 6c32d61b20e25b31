package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/testgen/internal/api"
	"github.com/fakeyudi/testgen/internal/auth"
	"github.com/fakeyudi/testgen/internal/cache"
	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/config"
	"github.com/fakeyudi/testgen/internal/logger"
	"github.com/fakeyudi/testgen/internal/profile"
	"github.com/fakeyudi/testgen/internal/testcase"
	"github.com/fakeyudi/testgen/internal/tokenstore"
)

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in, run 'testgen login' first")

// App is everything a command needs, built once per invocation.
type App struct {
	Config  config.Config
	Profile *profile.Profile // nil before first setup

	Client   *api.Client
	Store    tokenstore.Store
	Auth     *auth.Manager
	Chats    *chat.Orchestrator
	Messages *chat.MessageService
	Tests    *testcase.Service
	Cache    *cache.Cache // nil when the cache could not be opened
}

// newApp wires the services for cfg and restores any persisted session.
func newApp(cfg config.Config, prof *profile.Profile) (*App, error) {
	client, err := api.New(api.Options{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	store, err := tokenstore.NewStore()
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	a := &App{
		Config:   cfg,
		Profile:  prof,
		Client:   client,
		Store:    store,
		Auth:     auth.NewManager(client, store),
		Chats:    chat.NewOrchestrator(client, cfg.Model),
		Messages: chat.NewMessageService(client),
		Tests:    testcase.NewService(client),
	}
	if _, err := a.Auth.CheckAuth(); err != nil {
		return nil, err
	}

	path := cfg.CachePath
	if path == "" {
		path, err = cache.DefaultPath()
	}
	if err == nil {
		a.Cache, err = cache.Open(path)
	}
	if err != nil {
		logger.WarnWithFields("chat cache disabled", logger.Fields{"error": err.Error()})
	}
	return a, nil
}

// Close releases the cache.
func (a *App) Close() error {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Close()
}

// requireLogin fails with errNotLoggedIn when there is no session.
func (a *App) requireLogin() error {
	if !a.Auth.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// author is the name written into exported transcripts.
func (a *App) author() string {
	if a.Profile != nil && a.Profile.Name != "" {
		return a.Profile.Name
	}
	return a.Auth.Session().Username
}

type appKey struct{}

func withApp(ctx context.Context, a *App) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, appKey{}, a)
}

// appFrom returns the App PersistentPreRunE stored on cmd, or nil.
func appFrom(cmd *cobra.Command) *App {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(appKey{}).(*App)
	return a
}
