package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
)

const roomChannelPrefix = "chat:room:"

// Bridge relays encoded frames between hubs running in different processes
// over Redis pub/sub. Each room maps to one channel; every instance listens on
// all of them with a single pattern subscription and ignores its own frames.
type Bridge struct {
	client     *redis.Client
	instanceID string
	outbound   chan *Envelope
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func NewBridge(client *redis.Client, instanceID string, buffer int) *Bridge {
	return &Bridge{
		client:     client,
		instanceID: instanceID,
		outbound:   make(chan *Envelope, buffer),
	}
}

func roomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

// Forward queues env for publishing without blocking the hub. When the queue
// is full the envelope is dropped; the protocol makes no delivery promise.
func (b *Bridge) Forward(env *Envelope) bool {
	select {
	case b.outbound <- env:
		return true
	default:
		incBridgeDropped()
		log.Printf("bridge queue full, dropping envelope for room %s", env.RoomID)
		return false
	}
}

// Run publishes queued envelopes and feeds envelopes from other instances
// into remote until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, remote chan<- *Envelope) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("websocket bridge: redis ping: %w", err)
	}

	subscriber := b.client.PSubscribe(ctx, roomChannelPrefix+"*")
	defer subscriber.Close()

	if _, err := subscriber.Receive(ctx); err != nil {
		return fmt.Errorf("websocket bridge: subscribe: %w", err)
	}
	log.Printf("Subscribed to Redis channels %s*", roomChannelPrefix)

	go b.publishLoop(ctx)

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := b.decode(msg)
			if err != nil {
				log.Printf("Dropping message from Redis channel '%s': %v", msg.Channel, err)
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			select {
			case remote <- env:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.outbound:
			if err := b.publish(ctx, env); err != nil {
				log.Printf("%v", err)
			}
		}
	}
}

func (b *Bridge) publish(ctx context.Context, env *Envelope) error {
	if env.RoomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, roomChannel(env.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}

func (b *Bridge) decode(msg *redis.Message) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if room := strings.TrimPrefix(msg.Channel, roomChannelPrefix); room != env.RoomID {
		return nil, fmt.Errorf("envelope for room %q arrived on channel for %q", env.RoomID, room)
	}
	if len(env.Frame) == 0 {
		return nil, fmt.Errorf("envelope has no frame")
	}
	return &env, nil
}
