package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mbolis/surveyer/database"
	"github.com/mbolis/surveyer/log"
)

// Registry keeps the live session of every client. Sessions are evicted
// from memory ttl after creation or when size is exceeded, together with
// their cookie jar; the persisted profile survives and is restored on the
// client's next request.
type Registry struct {
	store      database.Storage
	newGateway func() Gateway

	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

func NewRegistry(store database.Storage, newGateway func() Gateway, size int, ttl time.Duration) *Registry {
	return &Registry{
		store:      store,
		newGateway: newGateway,
		sessions: expirable.NewLRU[string, *Session](size, func(clientID string, _ *Session) {
			log.WithField("client", clientID).Debug("session.registry: evicted")
		}, ttl),
	}
}

// Get returns the client's session, creating and hydrating it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*Session, error) {
	if s, ok := r.sessions.Get(clientID); ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions.Get(clientID); ok {
		return s, nil
	}

	s := New(r.newGateway(), database.ForClient(r.store, clientID))
	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	r.sessions.Add(clientID, s)
	return s, nil
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
