// Package server exposes a docstore.Store over HTTP so several editors can
// share one hosted document database. Writes are broadcast to websocket
// watchers.
//
// With a verifier installed every document request runs as the token's
// subject: it may read and write its own users document and the
// collections of maps listed there, nothing else. The accounts collection
// is never served.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/registry"
)

const maxDocumentBytes = 1 << 20

// Verifier resolves a bearer token to a user id.
type Verifier func(token string) (string, error)

// Accounts creates and signs in users for remote clients.
type Accounts interface {
	CreateAccount(ctx context.Context, reg auth.Registration) (auth.User, string, error)
	Authenticate(ctx context.Context, email, password string) (auth.User, string, error)
}

// Server serves a document store.
type Server struct {
	store    docstore.Store
	hub      *Hub
	verify   Verifier
	accounts Accounts
	router   chi.Router
	upgrader websocket.Upgrader
}

type subjectKey struct{}

// Option configures a Server.
type Option func(*Server)

// WithVerifier requires a valid bearer token on every /v1 request.
func WithVerifier(v Verifier) Option {
	return func(s *Server) { s.verify = v }
}

// WithAccounts serves the register and login endpoints from accounts.
func WithAccounts(a Accounts) Option {
	return func(s *Server) { s.accounts = a }
}

// New builds the HTTP handler for store.
func New(store docstore.Store, opts ...Option) *Server {
	s := &Server{
		store: store,
		hub:   NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		if s.accounts != nil {
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		}
		r.Group(func(r chi.Router) {
			if s.verify != nil {
				r.Use(s.authenticate)
			}
			r.Get("/docs/{collection}", s.handleList)
			r.Get("/docs/{collection}/{id}", s.handleGet)
			r.Put("/docs/{collection}/{id}", s.handleSet)
			r.Delete("/docs/{collection}/{id}", s.handleDelete)
			r.Get("/watch", s.handleWatch)
		})
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the change broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		glog.V(2).Infof("[s]%s %s %d %s\n", r.Method, r.URL.RequestURI(), ww.Status(), time.Since(start))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		uid, err := s.verify(token)
		if err != nil {
			glog.Infof("[s]auth error %s = %s\n", r.RemoteAddr, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		glog.V(2).Infof("[s]auth %s\n", uid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, uid)))
	})
}

// authorize checks that the request's subject may touch collection/id.
// An empty id means the whole collection. Without a verifier every
// collection but accounts is open.
func (s *Server) authorize(r *http.Request, collection, id string) error {
	denied := fmt.Errorf("%s: %w", collection, apperr.ErrForbidden)
	if collection == docstore.Accounts || strings.HasPrefix(collection, docstore.Accounts+"/") {
		return denied
	}
	uid, ok := r.Context().Value(subjectKey{}).(string)
	if !ok {
		return nil
	}
	if collection == docstore.Users {
		if id != "" && id == uid {
			return nil
		}
		return denied
	}
	if mapID, ok := docstore.MapOf(collection); ok {
		owned, err := registry.Owns(r.Context(), s.store, uid, mapID)
		if err != nil {
			return err
		}
		if owned {
			return nil
		}
	}
	return denied
}

// authorizeWatch checks a watch prefix. A signed-in subject may only watch
// whole maps it owns.
func (s *Server) authorizeWatch(r *http.Request, prefix string) error {
	if _, ok := r.Context().Value(subjectKey{}).(string); !ok {
		if strings.HasPrefix(prefix, docstore.Accounts) {
			return fmt.Errorf("%s: %w", prefix, apperr.ErrForbidden)
		}
		return nil
	}
	mapID := strings.TrimSuffix(strings.TrimPrefix(prefix, "maps/"), "/")
	if mapID == "" || strings.Contains(mapID, "/") || prefix != docstore.MapPrefix(mapID) {
		return fmt.Errorf("watch %q: %w", prefix, apperr.ErrForbidden)
	}
	return s.authorize(r, docstore.NodesOf(mapID), "")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes)).Decode(&reg); err != nil {
		http.Error(w, "bad registration", http.StatusBadRequest)
		return
	}
	u, token, err := s.accounts.CreateAccount(r.Context(), reg)
	if err != nil {
		writeError(w, err)
		return
	}
	glog.Infof("[s]registered %s\n", u.UID)
	writeJSON(w, http.StatusOK, auth.SignIn{User: u, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		http.Error(w, "bad login", http.StatusBadRequest)
		return
	}
	u, token, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, apperr.ErrValidationFailed) {
		glog.Infof("[s]login refused %s\n", r.RemoteAddr)
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.SignIn{User: u, Token: token})
}

func collectionParam(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "collection"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	coll, err := collectionParam(r)
	if err != nil {
		http.Error(w, "bad collection", http.StatusBadRequest)
		return
	}
	if err := s.authorize(r, coll, ""); err != nil {
		writeError(w, err)
		return
	}
	docs, err := s.store.List(r.Context(), coll)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	coll, err := collectionParam(r)
	if err != nil {
		http.Error(w, "bad collection", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.authorize(r, coll, id); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.store.Get(r.Context(), coll, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	coll, err := collectionParam(r)
	if err != nil {
		http.Error(w, "bad collection", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.authorize(r, coll, id); err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxDocumentBytes {
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.store.Set(r.Context(), coll, id, body); err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(docstore.Change{Op: docstore.OpSet, Collection: coll, ID: id, At: time.Now()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	coll, err := collectionParam(r)
	if err != nil {
		http.Error(w, "bad collection", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.authorize(r, coll, id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Delete(r.Context(), coll, id); err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(docstore.Change{Op: docstore.OpDelete, Collection: coll, ID: id, At: time.Now()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if err := s.authorizeWatch(r, prefix); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[w]upgrade error %s = %s\n", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	changes, cancel := s.hub.Subscribe(prefix)
	defer cancel()

	// Reader: notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	glog.V(2).Infof("[w]%s watching %q\n", r.RemoteAddr, prefix)
	for {
		select {
		case <-closed:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(c); err != nil {
				glog.Infof("[w]%s-> error = %s\n", r.RemoteAddr, err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("[s]encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrValidationFailed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrForbidden):
		glog.Infof("[s]refused: %v\n", err)
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		glog.Warningf("[s]store error: %v\n", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}
}
