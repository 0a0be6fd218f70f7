package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/downtime/pkg/events"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/retry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/rs/zerolog"
)

var errNoChannel = errors.New("no channel attached")

// Pusher delivers state updates to attached channels with bounded retry
type Pusher struct {
	registry     *registry.Registry
	policy       retry.Policy
	writeTimeout time.Duration
	events       events.Publisher
	logger       zerolog.Logger
}

// NewPusher creates a pusher. Each attempt is bounded by writeTimeout and
// failed attempts back off according to policy.
func NewPusher(reg *registry.Registry, policy retry.Policy, writeTimeout time.Duration, publisher events.Publisher) *Pusher {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Pusher{
		registry:     reg,
		policy:       policy,
		writeTimeout: writeTimeout,
		events:       publisher,
		logger:       log.WithComponent("pusher"),
	}
}

// Push sends state to the client's channel. Without a channel it returns
// DeliveryUnreachable at once; the heartbeat path covers that client. When
// every attempt fails the channel is detached and closed and the result is
// DeliveryFailed.
//
// Each attempt uses the channel attached at that moment, so an agent that
// reconnects during backoff receives the retry on its new channel.
func (p *Pusher) Push(ctx context.Context, clientID string, state types.State) types.DeliveryResult {
	ch := p.registry.Channel(clientID)
	if ch == nil {
		metrics.PushesTotal.WithLabelValues(string(types.DeliveryUnreachable)).Inc()
		return types.DeliveryUnreachable
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PushDuration)

	logger := p.logger.With().Str("client_id", clientID).Str("state", string(state)).Logger()
	msg := wire.StateUpdate(state)

	err := p.policy.Do(ctx, func(attempt int) error {
		if cur := p.registry.Channel(clientID); cur != nil {
			ch = cur
		}
		metrics.PushAttemptsTotal.Inc()

		actx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()

		if err := ch.Send(actx, msg); err != nil {
			logger.Debug().Err(err).Int("attempt", attempt+1).Msg("Push attempt failed")
			return err
		}
		return nil
	})
	if err == nil {
		logger.Debug().Msg("State pushed")
		metrics.PushesTotal.WithLabelValues(string(types.DeliveryDelivered)).Inc()
		return types.DeliveryDelivered
	}

	if ctx.Err() != nil {
		// Shutting down; the channel itself is not at fault
		metrics.PushesTotal.WithLabelValues(string(types.DeliveryFailed)).Inc()
		return types.DeliveryFailed
	}

	logger.Warn().Err(err).Msg("Push failed, dropping channel")
	p.registry.DetachChannel(clientID, ch)
	ch.Close()

	p.events.Publish(&events.Event{
		Type:     events.EventChannelDead,
		ClientID: clientID,
		Message:  fmt.Sprintf("push of %s failed: %v", state, err),
	})
	metrics.PushesTotal.WithLabelValues(string(types.DeliveryFailed)).Inc()
	return types.DeliveryFailed
}

// Notify makes a single best-effort attempt to deliver msg
func (p *Pusher) Notify(ctx context.Context, clientID string, msg *wire.Message) error {
	ch := p.registry.Channel(clientID)
	if ch == nil {
		return fmt.Errorf("client %s: %w", clientID, errNoChannel)
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return ch.Send(ctx, msg)
}
