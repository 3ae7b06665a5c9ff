package database

import "context"

// Items is one client's slice of the storage, with the familiar
// getItem/setItem/removeItem shape.
type Items interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

type clientItems struct {
	store    Storage
	clientID string
}

// ForClient scopes store to a single client id.
func ForClient(store Storage, clientID string) Items {
	return clientItems{store, clientID}
}

func (c clientItems) GetItem(ctx context.Context, key string) (string, bool, error) {
	return c.store.Get(ctx, c.clientID, key)
}

func (c clientItems) SetItem(ctx context.Context, key, value string) error {
	return c.store.Set(ctx, c.clientID, key, value)
}

func (c clientItems) RemoveItem(ctx context.Context, key string) error {
	return c.store.Remove(ctx, c.clientID, key)
}
