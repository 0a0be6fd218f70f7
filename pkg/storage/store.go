package storage

import (
	"context"

	"github.com/cuemby/downtime/pkg/types"
)

// Store defines the interface for durable controller state
// This is implemented by BoltDB-backed storage
type Store interface {
	// Clients
	CreateClient(client *types.Client) error
	GetClient(id string) (*types.Client, error)
	ListClients() ([]*types.Client, error)
	// UpdateClient loads, mutates and saves a client in one transaction.
	// It returns types.ErrNotFound when the client no longer exists.
	UpdateClient(id string, fn func(*types.Client) error) error
	DeleteClient(id string) error

	// Windows (at most one per client, last write wins)
	PutWindow(clientID string, window types.Window) error
	GetWindow(clientID string) (*types.Window, error)
	DeleteWindow(clientID string) error

	// Overrides
	SetOverride(clientID string, override types.Override) error
	GetOverride(clientID string) (*types.Override, error)
	ClearOverride(clientID string) error

	// ListActiveSchedules returns one row per client that has a window or
	// an override. Failures wrap types.ErrStoreUnavailable.
	ListActiveSchedules(ctx context.Context) ([]types.Schedule, error)

	// Utility
	Close() error
}
