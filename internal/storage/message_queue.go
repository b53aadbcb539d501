// internal/storage/message_queue.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/opc"
	"github.com/coffeye/xpod/internal/poller"
)

// Message is the JSON envelope published for every successful reading.
type Message struct {
	ID        string    `json:"id"`
	Session   string    `json:"session"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	BinUnits     string               `json:"bin_units"`
	Counts       [opc.NumBins]uint16  `json:"counts"`
	Bins         [opc.NumBins]float64 `json:"bins"`
	SamplePeriod *float64             `json:"sample_period_s"` // null when non-finite
	FlowRate     *float64             `json:"flow_rate_ml_s"`
	PM1          *float64             `json:"pm1"`
	PM25         *float64             `json:"pm2_5"`
	PM10         *float64             `json:"pm10"`
	Degraded     bool                 `json:"degraded"`
}

// client is the slice of redis.Cmdable the queue uses.
type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// MessageQueue publishes readings on a Redis channel and keeps a bounded
// per-device history list.
type MessageQueue struct {
	client  client
	closer  func() error
	channel string
	history int64
	session string
	units   string
	log     logrus.FieldLogger
}

// Config is the queue's connection and retention config.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	History  int    // entries kept per device; 0 disables the list
	BinUnits string // echoed in every message
}

// NewMessageQueue connects and pings Redis.
func NewMessageQueue(ctx context.Context, cfg Config, log logrus.FieldLogger) (*MessageQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("storage: redis ping %s: %w", cfg.Addr, err)
	}

	log.WithField("addr", cfg.Addr).Info("redis connected")

	q := newMessageQueue(rdb, cfg, log)
	q.closer = rdb.Close
	return q, nil
}

func newMessageQueue(c client, cfg Config, log logrus.FieldLogger) *MessageQueue {
	return &MessageQueue{
		client:  c,
		closer:  func() error { return nil },
		channel: cfg.Channel,
		history: int64(cfg.History),
		session: uuid.NewString(),
		units:   cfg.BinUnits,
		log:     log,
	}
}

// Name identifies the sink in logs and metrics.
func (q *MessageQueue) Name() string { return "redis" }

// HistoryKey is the list holding a device's recent readings.
func HistoryKey(deviceID string) string {
	return fmt.Sprintf("opc:%s:readings", deviceID)
}

// Write publishes one poll result. Failed cycles are not published.
func (q *MessageQueue) Write(ctx context.Context, res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	data, err := json.Marshal(q.message(res))
	if err != nil {
		return fmt.Errorf("storage: marshal: %w", err)
	}

	if err := q.client.Publish(ctx, q.channel, data).Err(); err != nil {
		return fmt.Errorf("storage: publish %s: %w", q.channel, err)
	}

	if q.history <= 0 {
		return nil
	}

	key := HistoryKey(res.UnitID)
	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		q.log.WithError(err).WithField("key", key).Warn("history push failed")
		return nil
	}
	if err := q.client.LTrim(ctx, key, 0, q.history-1).Err(); err != nil {
		q.log.WithError(err).WithField("key", key).Warn("history trim failed")
	}

	return nil
}

func (q *MessageQueue) message(res poller.PollResult) Message {
	r := res.Reading
	return Message{
		ID:           uuid.NewString(),
		Session:      q.session,
		DeviceID:     res.UnitID,
		Timestamp:    res.At.UTC(),
		BinUnits:     q.units,
		Counts:       r.Counts,
		Bins:         r.Bins,
		SamplePeriod: finite(r.SamplePeriod),
		FlowRate:     finite(r.FlowRate),
		PM1:          finite(r.PM1),
		PM25:         finite(r.PM25),
		PM10:         finite(r.PM10),
		Degraded:     r.Degraded,
	}
}

// finite maps NaN and ±Inf to nil; encoding/json rejects them.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Close closes the connection.
func (q *MessageQueue) Close() error {
	return q.closer()
}
