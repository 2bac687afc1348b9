package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepProbesThenEvictsSilentClient(t *testing.T) {
	h := newTestHub(t)
	c, conn := registerClient(t, h, "silent")

	var evicted []*Client
	m := NewMonitor(h, time.Hour, func(c *Client) { evicted = append(evicted, c) }, zerolog.Nop())

	assert.Equal(t, 0, m.Sweep())
	assert.Len(t, c.probe, 1, "first sweep queues a probe")
	assert.True(t, c.Open())

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, []*Client{c}, evicted)
	assert.False(t, c.Open())
	assert.True(t, conn.Closed())
}

func TestSweepKeepsResponsiveClient(t *testing.T) {
	h := newTestHub(t)
	c, conn := registerClient(t, h, "chatty")
	m := NewMonitor(h, time.Hour, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, m.Sweep())
		<-c.probe
		conn.Pong()
	}
	assert.True(t, c.Open())
}

func TestRunSweepsOnInterval(t *testing.T) {
	h := newTestHub(t)
	c, conn := registerClient(t, h, "c1")
	go c.WritePump()

	var mu sync.Mutex
	var evicted []string
	m := NewMonitor(h, 10*time.Millisecond, func(c *Client) {
		h.Unregister(c)
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, c.ID)
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 1
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, conn.Pings(), 1)
	assert.Zero(t, h.ClientCount())
}
