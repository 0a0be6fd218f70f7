package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cuemby/downtime/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketClients   = []byte("clients")
	bucketWindows   = []byte("windows")
	bucketOverrides = []byte("overrides")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "downtime.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketClients,
			bucketWindows,
			bucketOverrides,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Client operations
func (s *BoltStore) CreateClient(client *types.Client) error {
	return s.put(bucketClients, client.ID, client)
}

func (s *BoltStore) GetClient(id string) (*types.Client, error) {
	var client types.Client
	if err := s.get(bucketClients, id, "client", &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *BoltStore) ListClients() ([]*types.Client, error) {
	var clients []*types.Client
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClients)
		return b.ForEach(func(k, v []byte) error {
			var client types.Client
			if err := json.Unmarshal(v, &client); err != nil {
				return err
			}
			clients = append(clients, &client)
			return nil
		})
	})
	return clients, err
}

// UpdateClient applies fn to the stored client inside a single write
// transaction, so a concurrent DeleteClient either happens before (and fn
// never runs) or after (and removes the updated record)
func (s *BoltStore) UpdateClient(id string, fn func(*types.Client) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClients)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("client %s: %w", id, types.ErrNotFound)
		}

		var client types.Client
		if err := json.Unmarshal(data, &client); err != nil {
			return err
		}
		if err := fn(&client); err != nil {
			return err
		}
		client.ID = id

		data, err := json.Marshal(&client)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// DeleteClient removes the client together with its window and override
func (s *BoltStore) DeleteClient(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketClients, bucketWindows, bucketOverrides} {
			if err := tx.Bucket(bucket).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Window operations
func (s *BoltStore) PutWindow(clientID string, window types.Window) error {
	return s.put(bucketWindows, clientID, window)
}

func (s *BoltStore) GetWindow(clientID string) (*types.Window, error) {
	var window types.Window
	if err := s.get(bucketWindows, clientID, "window", &window); err != nil {
		return nil, err
	}
	return &window, nil
}

func (s *BoltStore) DeleteWindow(clientID string) error {
	return s.delete(bucketWindows, clientID)
}

// Override operations
func (s *BoltStore) SetOverride(clientID string, override types.Override) error {
	return s.put(bucketOverrides, clientID, override)
}

func (s *BoltStore) GetOverride(clientID string) (*types.Override, error) {
	var override types.Override
	if err := s.get(bucketOverrides, clientID, "override", &override); err != nil {
		return nil, err
	}
	return &override, nil
}

func (s *BoltStore) ClearOverride(clientID string) error {
	return s.delete(bucketOverrides, clientID)
}

// ListActiveSchedules reads windows and overrides in one transaction so a
// tick never sees a half-applied write
func (s *BoltStore) ListActiveSchedules(ctx context.Context) ([]types.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	byClient := make(map[string]*types.Schedule)
	row := func(id string) *types.Schedule {
		sc, ok := byClient[id]
		if !ok {
			sc = &types.Schedule{ClientID: id}
			byClient[id] = sc
		}
		return sc
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketWindows).ForEach(func(k, v []byte) error {
			var window types.Window
			if err := json.Unmarshal(v, &window); err != nil {
				return fmt.Errorf("window %s: %w", k, err)
			}
			row(string(k)).Window = &window
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketOverrides).ForEach(func(k, v []byte) error {
			var override types.Override
			if err := json.Unmarshal(v, &override); err != nil {
				return fmt.Errorf("override %s: %w", k, err)
			}
			row(string(k)).Override = &override
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	schedules := make([]types.Schedule, 0, len(byClient))
	for _, sc := range byClient {
		schedules = append(schedules, *sc)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].ClientID < schedules[j].ClientID
	})
	return schedules, nil
}

func (s *BoltStore) put(bucket []byte, key string, value any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key, kind string, value any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", kind, key, types.ErrNotFound)
		}
		return json.Unmarshal(data, value)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Delete([]byte(key))
	})
}
