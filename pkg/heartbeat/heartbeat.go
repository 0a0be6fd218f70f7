// Package heartbeat implements the pull side of state delivery. Agents poll
// on a fixed interval and get their desired state back, which covers every
// push that was lost or never attempted.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/rs/zerolog"
)

// Request is one heartbeat from an agent
type Request struct {
	ClientID    string
	Address     string
	ActualState types.State // optional; empty when the agent has not applied anything yet
	ObservedAt  time.Time
}

// Response tells the agent what to enforce. Window and Override let it keep
// enforcing on its own while the controller is unreachable.
type Response struct {
	DesiredState types.State
	Window       *types.Window
	Override     *types.Override
	ServerTime   time.Time
}

// Store is the part of the persistent store heartbeats touch
type Store interface {
	UpdateClient(id string, fn func(*types.Client) error) error
	GetWindow(clientID string) (*types.Window, error)
	GetOverride(clientID string) (*types.Override, error)
}

// Service answers heartbeats
type Service struct {
	registry *registry.Registry
	store    Store
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a heartbeat service
func NewService(reg *registry.Registry, store Store) *Service {
	return &Service{
		registry: reg,
		store:    store,
		now:      time.Now,
		logger:   log.WithComponent("heartbeat"),
	}
}

// OnHeartbeat records contact from a known client and returns its desired
// state. Unknown ids get types.ErrNotFound; a heartbeat never registers a
// client. Store failures are logged and do not fail the heartbeat.
func (s *Service) OnHeartbeat(ctx context.Context, req Request) (*Response, error) {
	if req.ClientID == "" {
		metrics.HeartbeatsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("empty client id: %w", types.ErrNotFound)
	}

	client, err := s.registry.Touch(req.ClientID, req.Address)
	if err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("unknown").Inc()
		s.logger.Warn().Str("client_id", req.ClientID).Str("address", req.Address).Msg("Heartbeat from unknown client")
		return nil, err
	}
	logger := s.logger.With().Str("client_id", req.ClientID).Logger()

	now := s.now()
	if req.ActualState != "" {
		observed := req.ObservedAt
		if observed.IsZero() {
			observed = now
		}
		if err := s.registry.RecordActualState(req.ClientID, req.ActualState, observed); err != nil {
			logger.Debug().Err(err).Msg("Ignoring reported state")
		} else {
			client.ActualState = req.ActualState
			client.ActualObservedAt = observed
		}
	}

	s.mirror(client, logger)

	resp := &Response{
		DesiredState: client.DesiredState,
		ServerTime:   now,
	}

	w, err := s.store.GetWindow(req.ClientID)
	switch {
	case err == nil:
		resp.Window = w
	case !errors.Is(err, types.ErrNotFound):
		logger.Warn().Err(err).Msg("Failed to load window for heartbeat")
	}

	o, err := s.store.GetOverride(req.ClientID)
	switch {
	case err == nil:
		if o.Active(now) {
			resp.Override = o
		}
	case !errors.Is(err, types.ErrNotFound):
		logger.Warn().Err(err).Msg("Failed to load override for heartbeat")
	}

	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	logger.Debug().Str("desired", string(resp.DesiredState)).Msg("Heartbeat")
	return resp, nil
}

// mirror writes contact details through to the store, best effort
func (s *Service) mirror(client types.Client, logger zerolog.Logger) {
	err := s.store.UpdateClient(client.ID, func(stored *types.Client) error {
		stored.Address = client.Address
		stored.LastContact = client.LastContact
		if client.ActualState != "" {
			stored.ActualState = client.ActualState
			stored.ActualObservedAt = client.ActualObservedAt
		}
		return nil
	})
	switch {
	case errors.Is(err, types.ErrNotFound):
		// Deleted while this heartbeat was in flight
		logger.Debug().Msg("Client record gone, heartbeat not persisted")
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to persist heartbeat")
	}
}
