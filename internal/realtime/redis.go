package realtime

import (
	"context"
	"encoding/json"

	"projectron-api/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher delivers an event to every connection of a user.
type Publisher interface {
	Publish(userID string, event any)
}

type envelope struct {
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge fans events out through a Redis channel so every API instance
// delivers to the sockets it holds.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, hub: hub, logger: logger}
}

// Publish sends the event to the channel. When Redis is unreachable the
// event is delivered to local sockets only.
func (b *RedisBridge) Publish(userID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("encode realtime event", zap.String("user_id", userID), zap.Error(err))
		return
	}
	msg, _ := json.Marshal(envelope{UserID: userID, Payload: payload})
	if err := b.rdb.Publish(context.Background(), b.channel, msg).Err(); err != nil {
		b.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
		b.hub.Broadcast(userID, payload)
	}
}

// Run relays channel messages to the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("realtime bridge subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBridge) deliver(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.UserID == "" {
		b.logger.Warn("drop malformed realtime message", zap.Error(err))
		return
	}
	b.hub.Broadcast(env.UserID, env.Payload)
}

var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = (*RedisBridge)(nil)
)
