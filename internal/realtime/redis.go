package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher implements Dispatcher on Redis pub/sub. Gateway processes
// subscribe to the channel/user topics and forward envelopes to their local
// websocket connections; presence is a Redis hash per channel so any process
// can answer "who is reachable" without owning the connection.
type RedisDispatcher struct {
	rdb *redis.Client

	// PresenceTTL bounds how long a socket registration survives without a
	// refresh, so crashed gateways do not leak presence forever.
	PresenceTTL time.Duration
}

func NewRedisDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb, PresenceTTL: 90 * time.Second}
}

func channelTopic(channel string) string { return "rt:chan:" + channel }
func userTopic(userID string) string     { return "rt:user:" + userID }
func presenceKey(channel string) string  { return "rt:presence:" + channel }

func (d *RedisDispatcher) EmitToChannel(ctx context.Context, channel, event string, payload any) error {
	return d.publish(ctx, channelTopic(channel), event, payload)
}

func (d *RedisDispatcher) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	return d.publish(ctx, userTopic(userID), event, payload)
}

func (d *RedisDispatcher) ConnectedSockets(ctx context.Context, channel string) ([]SocketRef, error) {
	entries, err := d.rdb.HGetAll(ctx, presenceKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence lookup for %s: %w", channel, err)
	}
	out := make([]SocketRef, 0, len(entries))
	for socketID, userID := range entries {
		out = append(out, SocketRef{SocketID: socketID, UserID: userID})
	}
	return out, nil
}

func (d *RedisDispatcher) publish(ctx context.Context, topic, event string, payload any) error {
	env := Envelope{Event: event, Payload: payload, SentAt: time.Now().UTC()}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := d.rdb.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, topic, err)
	}
	return nil
}

var presenceRegisterScript = redis.NewScript(`
-- KEYS[1] = presence hash for the channel
-- ARGV[1] = socket id
-- ARGV[2] = user id
-- ARGV[3] = ttl_ms
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return redis.call('HLEN', KEYS[1])
`)

var presenceUnregisterScript = redis.NewScript(`
-- KEYS[1] = presence hash for the channel
-- ARGV[1] = socket id
redis.call('HDEL', KEYS[1], ARGV[1])
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
end
return redis.call('HLEN', KEYS[1])
`)

// RegisterSocket records a socket as subscribed to channel. Called by the
// gateway when a connection subscribes; also refreshes the hash TTL.
func (d *RedisDispatcher) RegisterSocket(ctx context.Context, channel, socketID, userID string) error {
	if channel == "" || socketID == "" || userID == "" {
		return fmt.Errorf("channel, socket id and user id are required")
	}
	return presenceRegisterScript.Run(ctx, d.rdb,
		[]string{presenceKey(channel)}, socketID, userID, d.PresenceTTL.Milliseconds()).Err()
}

// UnregisterSocket removes a socket from channel, deleting the hash when it
// empties out.
func (d *RedisDispatcher) UnregisterSocket(ctx context.Context, channel, socketID string) error {
	if channel == "" || socketID == "" {
		return fmt.Errorf("channel and socket id are required")
	}
	return presenceUnregisterScript.Run(ctx, d.rdb,
		[]string{presenceKey(channel)}, socketID).Err()
}

// Subscribe opens a pub/sub subscription for the given topics. Gateways own
// the returned PubSub and must Close it.
func (d *RedisDispatcher) Subscribe(ctx context.Context, topics ...string) *redis.PubSub {
	return d.rdb.Subscribe(ctx, topics...)
}
