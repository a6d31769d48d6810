package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/registry"
)

type label struct {
	Label string `json:"label"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(docstore.NewMemory(), opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthz(t *testing.T) {
	s := New(docstore.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestHandlers(t *testing.T) {
	s := New(docstore.NewMemory())
	h := s.Handler()

	t.Run("put then get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/docs/users/u1", strings.NewReader(`{"label":"a"}`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/v1/docs/users/u1", nil)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var doc docstore.Document
		require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
		assert.Equal(t, "u1", doc.ID)
		assert.JSONEq(t, `{"label":"a"}`, string(doc.Data))
	})

	t.Run("missing document is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/docs/users/nobody", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid json is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/docs/users/u2", strings.NewReader(`{nope`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/docs/empty", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestRemoteRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	r := docstore.NewRemote(ts.URL, "", time.Second)
	defer r.Close()

	require.NoError(t, r.Ping(ctx))

	coll := docstore.NodesOf("m1")
	require.NoError(t, docstore.SetJSON(ctx, r, coll, "n1", label{Label: "one"}))
	require.NoError(t, docstore.SetJSON(ctx, r, coll, "n2", label{Label: "two"}))

	var got label
	require.NoError(t, docstore.GetJSON(ctx, r, coll, "n1", &got))
	assert.Equal(t, "one", got.Label)

	docs, err := r.List(ctx, coll)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, r.Delete(ctx, coll, "n1"))
	_, err = r.Get(ctx, coll, "n1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "expected not found, got %v", err)

	err = r.Set(ctx, coll, "bad", []byte(`{oops`))
	assert.True(t, errors.Is(err, apperr.ErrValidationFailed), "expected validation error, got %v", err)
}

func TestRemoteUnreachable(t *testing.T) {
	_, ts := newTestServer(t)
	url := ts.URL
	ts.Close()

	r := docstore.NewRemote(url, "", 200*time.Millisecond)
	_, err := r.List(context.Background(), "users")
	assert.True(t, errors.Is(err, apperr.ErrRemoteUnavailable), "expected unavailable, got %v", err)
}

func TestAuthentication(t *testing.T) {
	verify := func(token string) (string, error) {
		if token == "good" {
			return "u1", nil
		}
		return "", errors.New("bad token")
	}
	_, ts := newTestServer(t, WithVerifier(verify))
	ctx := context.Background()

	anon := docstore.NewRemote(ts.URL, "", time.Second)
	_, err := anon.List(ctx, "users")
	assert.True(t, errors.Is(err, apperr.ErrNoSession), "expected no session, got %v", err)

	bad := docstore.NewRemote(ts.URL, "forged", time.Second)
	_, err = bad.List(ctx, "users")
	assert.True(t, errors.Is(err, apperr.ErrNoSession), "expected no session, got %v", err)

	good := docstore.NewRemote(ts.URL, "good", time.Second)
	require.NoError(t, docstore.SetJSON(ctx, good, docstore.Users, "u1", label{Label: "me"}))
	var me label
	require.NoError(t, docstore.GetJSON(ctx, good, docstore.Users, "u1", &me))
	assert.Equal(t, "me", me.Label)

	// Health stays public.
	assert.NoError(t, anon.Ping(ctx))
}

func TestAccountsNeverServed(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.Accounts, "u1", []byte(`{"password_hash":"$2a$10$x"}`)))
	h := New(store).Handler()

	for _, c := range []struct{ method, target string }{
		{http.MethodGet, "/v1/docs/accounts"},
		{http.MethodGet, "/v1/docs/accounts/u1"},
		{http.MethodPut, "/v1/docs/accounts/u1"},
		{http.MethodDelete, "/v1/docs/accounts/u1"},
		{http.MethodGet, "/v1/watch?prefix=accounts"},
	} {
		req := httptest.NewRequest(c.method, c.target, strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", c.method, c.target)
		assert.NotContains(t, w.Body.String(), "password_hash")
	}
}

// signedUp registers a user through the server's account endpoints and
// returns a store client acting as that user.
func signedUp(t *testing.T, url, name, email string) (auth.User, *docstore.Remote) {
	t.Helper()
	client := auth.NewProvider(nil, "", time.Hour, auth.CredentialsPath(t.TempDir()))
	client.UseServer(url, 5*time.Second)
	u, token, err := client.Register(context.Background(), auth.Registration{
		Name: name, LastName: "Tester", Email: email, Password: "correct-horse",
	})
	require.NoError(t, err)
	return u, docstore.NewRemote(url, token, 5*time.Second)
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := docstore.NewMemory()
	accounts := auth.NewProvider(store, "server-secret", time.Hour, "")
	ts := httptest.NewServer(New(store, WithAccounts(accounts), WithVerifier(accounts.Verify)).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestScopedToSubject(t *testing.T) {
	ts := newAuthServer(t)
	ctx := context.Background()

	ada, adaStore := signedUp(t, ts.URL, "Ada", "ada@example.com")
	bob, bobStore := signedUp(t, ts.URL, "Bob", "bob@example.com")

	t.Run("own user document without credentials", func(t *testing.T) {
		doc, err := adaStore.Get(ctx, docstore.Users, ada.UID)
		require.NoError(t, err)
		assert.NotContains(t, string(doc.Data), "password")
	})

	t.Run("other users are off limits", func(t *testing.T) {
		_, err := adaStore.List(ctx, docstore.Users)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		_, err = adaStore.Get(ctx, docstore.Users, bob.UID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		assert.ErrorIs(t, adaStore.Set(ctx, docstore.Users, bob.UID, []byte(`{"maps":[]}`)), apperr.ErrForbidden)
		assert.ErrorIs(t, adaStore.Delete(ctx, docstore.Users, bob.UID), apperr.ErrForbidden)
		_, err = adaStore.List(ctx, docstore.Accounts)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	maps := registry.New(adaStore, auth.Static(ada.UID), registry.Options{MinNameLength: 2})
	m, err := maps.Create(ctx, "Roadmap")
	require.NoError(t, err)
	nodes := docstore.NodesOf(m.ID)
	require.NoError(t, docstore.SetJSON(ctx, adaStore, nodes, "n1", label{Label: "root"}))

	t.Run("other users cannot touch the map", func(t *testing.T) {
		_, err := bobStore.List(ctx, nodes)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		_, err = bobStore.Get(ctx, nodes, "n1")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		assert.ErrorIs(t, docstore.SetJSON(ctx, bobStore, nodes, "n2", label{Label: "x"}), apperr.ErrForbidden)
		assert.ErrorIs(t, bobStore.Delete(ctx, nodes, "n1"), apperr.ErrForbidden)
		err = bobStore.Watch(ctx, docstore.MapPrefix(m.ID), func(docstore.Change) {})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		err = bobStore.Watch(ctx, "", func(docstore.Change) {})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("forged token", func(t *testing.T) {
		forger := auth.NewProvider(nil, "guessed-secret", time.Hour, "")
		token, err := forger.IssueToken(ada.UID)
		require.NoError(t, err)
		_, err = docstore.NewRemote(ts.URL, token, time.Second).Get(ctx, docstore.Users, ada.UID)
		assert.ErrorIs(t, err, apperr.ErrNoSession)
	})

	t.Run("owner deletes the map", func(t *testing.T) {
		report, err := maps.Delete(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Deleted)
		assert.Empty(t, report.Orphans)
		_, err = adaStore.List(ctx, nodes)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestLoginEndpoint(t *testing.T) {
	ts := newAuthServer(t)
	ada, _ := signedUp(t, ts.URL, "Ada", "ada@example.com")

	client := auth.NewProvider(nil, "", time.Hour, auth.CredentialsPath(t.TempDir()))
	client.UseServer(ts.URL, 5*time.Second)

	_, _, err := client.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)

	u, token, err := client.Login(context.Background(), "ADA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, ada.UID, u.UID)

	doc, err := docstore.NewRemote(ts.URL, token, time.Second).Get(context.Background(), docstore.Users, ada.UID)
	require.NoError(t, err)
	assert.Equal(t, ada.UID, doc.ID)
}

func TestWatch(t *testing.T) {
	s, ts := newTestServer(t)
	r := docstore.NewRemote(ts.URL, "", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan docstore.Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, docstore.MapPrefix("m1"), func(c docstore.Change) { got <- c })
	}()

	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, docstore.SetJSON(context.Background(), r, docstore.NodesOf("other"), "x", label{}))
	require.NoError(t, docstore.SetJSON(context.Background(), r, docstore.NodesOf("m1"), "n1", label{Label: "a"}))
	require.NoError(t, r.Delete(context.Background(), docstore.EdgesOf("m1"), "e1"))

	select {
	case c := <-got:
		assert.Equal(t, docstore.OpSet, c.Op)
		assert.Equal(t, docstore.NodesOf("m1"), c.Collection)
		assert.Equal(t, "n1", c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for set change")
	}
	select {
	case c := <-got:
		assert.Equal(t, docstore.OpDelete, c.Op)
		assert.Equal(t, "e1", c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delete change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("maps/")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(docstore.Change{Op: docstore.OpSet, Collection: "maps/m/nodes", ID: "n"})
	}
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	assert.Equal(t, 0, h.Subscribers())
}
