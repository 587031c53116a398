package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// DefaultIdleTimeout is how long a registered client may go unused before Sweep drops it
const DefaultIdleTimeout = 30 * time.Minute

var errSessionExpired = errors.New("session expired")

type registered struct {
	client   *Client
	lastSeen time.Time
}

// Registry maps session tokens to their clients
type Registry struct {
	newGateway func() *gateway.Client
	idle       time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	clients map[string]*registered
}

// NewRegistry returns an empty registry creating gateways with newGateway.
// Clients unused for idle are dropped by Sweep.
func NewRegistry(newGateway func() *gateway.Client, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{newGateway: newGateway, idle: idle, now: time.Now, clients: make(map[string]*registered)}
}

// Anonymous returns a client with no session, for sign-up and sign-in
func (r *Registry) Anonymous() *Client {
	return New(r.newGateway())
}

// Add registers a signed-in client under its session token
func (r *Registry) Add(c *Client) {
	s := c.Session()
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[s.Token] = &registered{client: c, lastSeen: r.now()}
}

// Lookup returns the client of token without checking its session
func (r *Registry) Lookup(token string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.clients[token]
	if !ok {
		return nil, false
	}
	return reg.client, true
}

// Restore returns the client of token once the backend has confirmed the
// session is still live. A registered client whose session expired or was
// revoked is dropped. An unregistered token the backend accepts gets a new client.
func (r *Registry) Restore(ctx context.Context, token string) (*Client, error) {
	if c, ok := r.Lookup(token); ok {
		if err := r.check(ctx, c); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				r.Remove(token)
			}
			return nil, err
		}
		r.touch(token)
		return c, nil
	}

	c := r.Anonymous()
	c.gw.SetSession(&models.Session{Token: token})
	if _, err := c.CurrentUser(ctx); err != nil {
		c.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[token]; ok {
		c.Close()
		existing.lastSeen = r.now()
		return existing.client, nil
	}
	r.clients[token] = &registered{client: c, lastSeen: r.now()}
	glog.V(1).Infof("client: restored session")
	return c, nil
}

// Sweep drops clients that have been idle too long or whose session the
// backend no longer accepts. It returns how many were dropped.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.RLock()
	regs := make(map[string]*registered, len(r.clients))
	for token, reg := range r.clients {
		regs[token] = reg
	}
	r.mu.RUnlock()

	dropped := 0
	for token, reg := range regs {
		r.mu.RLock()
		idle := r.now().Sub(reg.lastSeen) >= r.idle
		r.mu.RUnlock()

		err := r.check(ctx, reg.client)
		if idle || errors.Is(err, gateway.ErrUnauthorized) {
			r.Remove(token)
			dropped++
		}
	}
	if dropped > 0 {
		glog.V(1).Infof("client: swept %d sessions", dropped)
	}
	return dropped
}

// Run sweeps every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Remove forgets token and closes its client
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	reg, ok := r.clients[token]
	delete(r.clients, token)
	r.mu.Unlock()
	if ok {
		reg.client.Close()
	}
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close closes every registered client
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*registered)
	r.mu.Unlock()
	for _, reg := range clients {
		reg.client.Close()
	}
}

// check fails with gateway.ErrUnauthorized when the session of c has expired
// locally or is rejected by the backend
func (r *Registry) check(ctx context.Context, c *Client) error {
	s := c.Session()
	if s == nil {
		return gateway.Reject("verifySession", gateway.ErrUnauthorized, errSessionExpired)
	}
	if !s.ExpiresAt.IsZero() && !r.now().Before(s.ExpiresAt) {
		return gateway.Reject("verifySession", gateway.ErrUnauthorized, errSessionExpired)
	}
	return c.gw.VerifySession(ctx)
}

func (r *Registry) touch(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.clients[token]; ok {
		reg.lastSeen = r.now()
	}
}
