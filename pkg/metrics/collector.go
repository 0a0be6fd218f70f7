package metrics

import (
	"time"

	"github.com/cuemby/downtime/pkg/types"
)

// Source is what the collector reads client gauges from
type Source interface {
	CountByState() map[types.State]int
	ConnectedCount() int
}

// Collector periodically refreshes gauges from a Source
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source) *Collector {
	return &Collector{
		source:   source,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect refreshes the gauges once
func (c *Collector) Collect() {
	for state, n := range c.source.CountByState() {
		ClientsTotal.WithLabelValues(string(state)).Set(float64(n))
	}
	ChannelsConnected.Set(float64(c.source.ConnectedCount()))
}
