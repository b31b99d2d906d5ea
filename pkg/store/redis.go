// Package store publishes run results to Redis so dashboards and other
// tooling can see the last known state of every device.
//
// Keys follow the TABLE|key convention:
//
//	DEVICE_STATUS|<address>  hash, last outcome per device
//	RUN|<run-id>             list of JSON audit events for one run
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/bulkcfg/pkg/audit"
)

const (
	deviceStatusTable = "DEVICE_STATUS"
	runTable          = "RUN"
)

// RedisStore wraps a Redis client for result publication.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context

	// RunTTL expires run lists. Zero keeps them forever.
	RunTTL time.Duration
}

// NewRedisStore creates a store for the Redis at addr, using database db.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		ctx: context.Background(),
	}
}

// Connect tests the connection
func (s *RedisStore) Connect() error {
	if err := s.client.Ping(s.ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", s.client.Options().Addr, err)
	}
	return nil
}

// Close closes the connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Log records event as the device's latest status and appends it to its
// run list in one transaction.
func (s *RedisStore) Log(event *audit.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	statusKey := deviceStatusTable + "|" + event.Device
	runKey := runTable + "|" + event.RunID

	_, err = s.client.TxPipelined(s.ctx, func(p redis.Pipeliner) error {
		p.Del(s.ctx, statusKey)
		p.HSet(s.ctx, statusKey, statusFields(event)...)
		p.RPush(s.ctx, runKey, data)
		if s.RunTTL > 0 {
			p.Expire(s.ctx, runKey, s.RunTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publishing %s to redis: %w", event.Device, err)
	}
	return nil
}

func statusFields(e *audit.Event) []interface{} {
	fields := []interface{}{
		"run_id", e.RunID,
		"timestamp", e.Timestamp.Format(time.RFC3339),
		"operation", string(e.Operation),
		"success", strconv.FormatBool(e.Success),
		"failures", strconv.Itoa(len(e.Failures())),
	}
	if e.Error != "" {
		fields = append(fields, "error", e.Error)
	}
	if e.SnapshotPath != "" {
		fields = append(fields, "snapshot", e.SnapshotPath)
	}
	if e.DiffPath != "" {
		fields = append(fields, "diff", e.DiffPath)
	}
	return fields
}

// DeviceStatus reads the latest status of one device.
// Returns (nil, nil) if the device has never been published.
func (s *RedisStore) DeviceStatus(address string) (map[string]string, error) {
	vals, err := s.client.HGetAll(s.ctx, deviceStatusTable+"|"+address).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// RunEvents returns the events of one run in the order they were logged.
func (s *RedisStore) RunEvents(runID string) ([]*audit.Event, error) {
	raw, err := s.client.LRange(s.ctx, runTable+"|"+runID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]*audit.Event, 0, len(raw))
	for i, item := range raw {
		var e audit.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decoding %s|%s[%d]: %w", runTable, runID, i, err)
		}
		events = append(events, &e)
	}
	return events, nil
}
