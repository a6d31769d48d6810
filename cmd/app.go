package cmd

import (
	"context"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/activity"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/config"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/registry"
	"github.com/msalah0e/mindmap/internal/remote"
	"github.com/msalah0e/mindmap/internal/session"
	"github.com/msalah0e/mindmap/internal/ui"
)

// app bundles what a command needs to talk to the store.
type app struct {
	cfg   *config.Config
	store docstore.Store
	auth  *auth.Provider
	sync  *remote.Sync
	maps  *registry.Registry
}

func openApp() (*app, error) {
	cfg := config.Load()
	credsPath := auth.CredentialsPath(config.ConfigDir())

	store, err := docstore.Open(cfg, auth.SavedToken(credsPath))
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:   cfg,
		store: store,
		auth:  auth.NewProvider(store, cfg.Auth.Secret, cfg.TokenTTL(), credsPath),
		sync:  remote.New(store, cfg.SyncTimeout()),
	}
	if cfg.Store.Backend == config.BackendRemote {
		a.auth.UseServer(cfg.Store.URL, cfg.SyncTimeout())
	}
	a.maps = registry.New(store, a.auth, registry.Options{
		MinNameLength: cfg.Maps.MinNameLength,
		Concurrency:   cfg.Maps.CascadeConcurrency,
	})
	a.notifyTo(os.Stderr)
	return a, nil
}

// notifyTo sends background save failures to w.
func (a *app) notifyTo(w io.Writer) {
	a.sync.OnError(func(op string, err error) {
		ui.Notify(w, ui.Warning("%s was not saved: %s", op, err))
	})
}

// mustOpenApp opens the app or exits.
func mustOpenApp() *app {
	a, err := openApp()
	if err != nil {
		fail(err)
	}
	return a
}

// Close waits for pending writes and releases the store.
func (a *app) Close() {
	a.sync.Wait()
	if err := a.store.Close(); err != nil {
		glog.Warningf("[cmd]close store: %v\n", err)
	}
}

// openMap finds one of the current user's maps and opens a session on it,
// exiting on failure. With allowOffline an unreachable store yields an
// empty session and a warning, which only suits commands that edit.
func (a *app) openMap(ctx context.Context, ref string, allowOffline bool) (registry.Map, *session.Session) {
	m, sess, err := a.loadMap(ctx, ref, allowOffline)
	if err != nil {
		fail(err)
	}
	return m, sess
}

func (a *app) loadMap(ctx context.Context, ref string, allowOffline bool) (registry.Map, *session.Session, error) {
	m, err := a.maps.Find(ctx, ref)
	if err != nil {
		return registry.Map{}, nil, err
	}
	sess, err := session.Open(ctx, a.auth, a.sync, m.ID)
	if err != nil {
		if sess == nil || !allowOffline {
			return registry.Map{}, nil, err
		}
		ui.Notify(os.Stderr, ui.FromError(err))
	}
	return m, sess, nil
}

// record appends to the activity log; failures only reach the debug log.
func record(action, mapID, details string) {
	if err := activity.Log(action, mapID, details); err != nil {
		glog.Warningf("[cmd]activity log: %v\n", err)
	}
}
