package tap

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// envelope wraps a mirrored packet with the originating instance ID so
// consumers can tell relays apart.
type envelope struct {
	InstanceID string          `json:"instance_id"`
	Channel    string          `json:"channel"`
	Packet     json.RawMessage `json:"packet"`
}

type item struct {
	channel string
	payload []byte
}

// RedisTap mirrors channel broadcasts to Redis pub/sub for out-of-process
// observers. The relay never subscribes to what it publishes.
type RedisTap struct {
	client     *redis.Client
	prefix     string
	instanceID string
	queue      chan item
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisTap creates a tap. Nothing is published until Start succeeds.
func NewRedisTap(cfg *RedisConfig, logger zerolog.Logger) *RedisTap {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisTap{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		queue:      make(chan item, buffer),
		logger:     logger.With().Str("component", "redis-tap").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start verifies Redis is reachable and starts the publisher.
func (t *RedisTap) Start() error {
	if err := t.client.Ping(t.ctx).Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.active = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()

	t.logger.Info().
		Str("instance_id", t.instanceID).
		Str("prefix", t.prefix).
		Msg("redis tap started")
	return nil
}

// Mirror queues a broadcast payload. It never blocks; a full queue drops
// the copy.
func (t *RedisTap) Mirror(channel string, payload []byte) {
	select {
	case t.queue <- item{channel: channel, payload: payload}:
	default:
		t.logger.Warn().Str("channel", channel).Msg("tap queue full, dropping")
	}
}

// Stop halts the publisher and closes the Redis connection. Copies still
// queued are discarded.
func (t *RedisTap) Stop() error {
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	return t.client.Close()
}

// Available reports whether the tap is publishing.
func (t *RedisTap) Available() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

func (t *RedisTap) run() {
	defer t.wg.Done()
	for {
		select {
		case it := <-t.queue:
			if err := t.publish(it); err != nil {
				t.logger.Error().Err(err).Str("channel", it.channel).Msg("tap publish failed")
			}
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *RedisTap) publish(it item) error {
	data, err := t.encode(it)
	if err != nil {
		return err
	}
	return t.client.Publish(t.ctx, t.prefix+it.channel, data).Err()
}

func (t *RedisTap) encode(it item) ([]byte, error) {
	return json.Marshal(envelope{
		InstanceID: t.instanceID,
		Channel:    it.channel,
		Packet:     it.payload,
	})
}
