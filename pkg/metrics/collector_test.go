package metrics

import (
	"testing"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	byState   map[types.State]int
	connected int
}

func (s staticSource) CountByState() map[types.State]int { return s.byState }
func (s staticSource) ConnectedCount() int               { return s.connected }

func TestCollectorCollect(t *testing.T) {
	c := NewCollector(staticSource{
		byState: map[types.State]int{
			types.StatePaused:   2,
			types.StateUnpaused: 5,
		},
		connected: 4,
	})

	c.Collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(ClientsTotal.WithLabelValues("paused")))
	assert.Equal(t, 5.0, testutil.ToFloat64(ClientsTotal.WithLabelValues("unpaused")))
	assert.Equal(t, 4.0, testutil.ToFloat64(ChannelsConnected))
}
