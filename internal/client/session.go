package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// frame mirrors the server's push message: the resource name and its full
// new value.
type frame struct {
	Resource string          `json:"resource"`
	Value    json.RawMessage `json:"value"`
}

// Session is one connected client of the synchronization API.  It owns a
// reconciler per tracked resource and translates reconciler saves into PUT
// requests.  A session is constructed and closed explicitly by its owner;
// there is no shared package-level connection.
type Session struct {
	baseURL string // e.g. "http://host:8080", no trailing slash
	token   string // bearer token issued by the auth collaborator
	httpc   *http.Client
	dialer  *websocket.Dialer

	mu   sync.Mutex
	recs map[string]*Reconciler
}

// NewSession returns a session talking to baseURL with the given bearer
// token.
func NewSession(baseURL, token string) *Session {
	return &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
		recs:    make(map[string]*Reconciler),
	}
}

// Track registers a resource with the given suppression window and returns
// its reconciler.  Tracking the same resource twice returns the existing
// reconciler.
func (s *Session) Track(resource string, window time.Duration) *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recs[resource]; ok {
		return r
	}
	r := NewReconciler(resource, window, func(value json.RawMessage) {
		go func() {
			if err := s.Put(context.Background(), resource, value); err != nil {
				log.Printf("session: save %s failed: %v", resource, err)
			}
		}()
	})
	s.recs[resource] = r
	return r
}

// Reconciler returns the reconciler for resource, or nil when untracked.
func (s *Session) Reconciler(resource string) *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[resource]
}

// Load fetches the resource's current value and completes the reconciler's
// initial load.  Edits made before Load succeeds stay local.
func (s *Session) Load(ctx context.Context, resource string) error {
	r := s.Reconciler(resource)
	if r == nil {
		return fmt.Errorf("session: resource %s is not tracked", resource)
	}
	value, err := s.Get(ctx, resource)
	if err != nil {
		return err
	}
	r.OnInitialLoad(value)
	return nil
}

// Get fetches the resource's current value without touching the reconciler.
func (s *Session) Get(ctx context.Context, resource string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/resources/"+resource, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.RawMessage(body), nil
}

// Put submits value as a mutation of resource.
func (s *Session) Put(ctx context.Context, resource string, value json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/v1/resources/"+resource, bytes.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("put %s: status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Edit records a local edit; the reconciler decides whether it results in a
// PUT (loaded, outside any suppression window).
func (s *Session) Edit(resource string, value json.RawMessage) error {
	r := s.Reconciler(resource)
	if r == nil {
		return fmt.Errorf("session: resource %s is not tracked", resource)
	}
	r.OnLocalEdit(value)
	return nil
}

// Subscribe opens the resource's push channel and applies incoming frames
// to the reconciler until the context is cancelled or the connection
// drops.  Frames that do not parse, name a different resource, or carry
// invalid JSON are dropped rather than applied.
func (s *Session) Subscribe(ctx context.Context, resource string) error {
	r := s.Reconciler(resource)
	if r == nil {
		return fmt.Errorf("session: resource %s is not tracked", resource)
	}
	wsURL := strings.Replace(s.baseURL, "http", "ws", 1) + "/v1/resources/" + resource + "/subscribe"
	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", resource, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The watcher must not outlive this call when the connection drops on
	// its own; done releases it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Printf("session: dropping malformed frame on %s: %v", resource, err)
			continue
		}
		if f.Resource != resource || !json.Valid(f.Value) {
			log.Printf("session: dropping foreign frame on %s", resource)
			continue
		}
		r.OnRemoteUpdate(f.Value)
	}
}
