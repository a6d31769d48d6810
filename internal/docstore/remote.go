package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msalah0e/mindmap/internal/apperr"
)

// Remote is a Store that talks to a `mindmap serve` instance over HTTP.
type Remote struct {
	base   string
	token  string
	client *http.Client
}

// NewRemote returns a client for the document server at baseURL. A
// non-empty token is sent as a bearer credential.
func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *Remote) docURL(collection, id string) string {
	u := r.base + "/v1/docs/" + url.PathEscape(collection)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (r *Remote) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	return r.client.Do(req)
}

// statusError converts a non-2xx response into the matching error kind.
func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("%s", op)
	case resp.StatusCode == http.StatusBadRequest:
		return apperr.Validation("%s: %s", op, text)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, apperr.ErrNoSession)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, apperr.ErrForbidden)
	default:
		return apperr.Unavailable(op, fmt.Errorf("status %d: %s", resp.StatusCode, text))
	}
}

func (r *Remote) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := checkKey(collection, id); err != nil {
		return Document{}, err
	}
	op := "get " + collection + "/" + id
	resp, err := r.do(ctx, http.MethodGet, r.docURL(collection, id), nil)
	if err != nil {
		return Document{}, apperr.Unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Document{}, statusError(op, resp)
	}
	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Document{}, apperr.Unavailable(op, err)
	}
	return doc, nil
}

func (r *Remote) List(ctx context.Context, collection string) ([]Document, error) {
	if !ValidCollection(collection) {
		return nil, apperr.Validation("invalid collection %q", collection)
	}
	op := "list " + collection
	resp, err := r.do(ctx, http.MethodGet, r.docURL(collection, ""), nil)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}
	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	return docs, nil
}

func (r *Remote) Set(ctx context.Context, collection, id string, data []byte) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	op := "set " + collection + "/" + id
	resp, err := r.do(ctx, http.MethodPut, r.docURL(collection, id), data)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}
	return nil
}

func (r *Remote) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	op := "delete " + collection + "/" + id
	resp, err := r.do(ctx, http.MethodDelete, r.docURL(collection, id), nil)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}
	return nil
}

func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// Ping checks that the server answers its health endpoint.
func (r *Remote) Ping(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, r.base+"/healthz", nil)
	if err != nil {
		return apperr.Unavailable("ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("ping", resp)
	}
	return nil
}

// Watch streams changes to collections starting with prefix until ctx is
// done or the connection drops. fn runs on the reading goroutine.
func (r *Remote) Watch(ctx context.Context, prefix string, fn func(Change)) error {
	wsURL := strings.Replace(r.base, "http", "ws", 1) + "/v1/watch?prefix=" + url.QueryEscape(prefix)
	header := http.Header{}
	if r.token != "" {
		header.Set("Authorization", "Bearer "+r.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("watch: %w", apperr.ErrNoSession)
		}
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("watch: %w", apperr.ErrForbidden)
		}
		return apperr.Unavailable("watch", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var c Change
		if err := conn.ReadJSON(&c); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return apperr.Unavailable("watch", err)
		}
		fn(c)
	}
}
