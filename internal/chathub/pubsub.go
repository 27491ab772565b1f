package chathub

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chatcall/backend/internal/models"
)

// bridgeChannel is the Redis Pub/Sub channel shared by all instances.
const bridgeChannel = "chatcall:events"

// Bridge mirrors hub-wide broadcasts between server instances through Redis
// Pub/Sub, so users connected to different instances still see each other's
// chat, presence and signaling traffic. No state is stored in Redis; the
// bridge only carries live events.
type Bridge struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

type bridgeEnvelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

func NewBridge(rdb *redis.Client, log zerolog.Logger) *Bridge {
	return &Bridge{
		rdb:    rdb,
		origin: uuid.New().String(),
		log:    log,
	}
}

// Publish mirrors one broadcast to the other instances. Publish failures are
// logged and absorbed: local delivery already happened and must not be
// affected by a broken bridge.
func (b *Bridge) Publish(ev models.Event) {
	payload, err := json.Marshal(bridgeEnvelope{Origin: b.origin, Event: ev})
	if err != nil {
		b.log.Error().Err(err).Msg("encoding bridge event")
		return
	}
	if err := b.rdb.Publish(context.Background(), bridgeChannel, payload).Err(); err != nil {
		b.log.Error().Err(err).Msg("publishing bridge event")
	}
}

// Listen starts a goroutine feeding foreign events into out. Events this
// instance published itself are skipped by origin ID.
func (b *Bridge) Listen(out chan<- models.Event) {
	go func() {
		pubsub := b.rdb.Subscribe(context.Background(), bridgeChannel)
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Error().Err(err).Msg("decoding bridge event")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			out <- env.Event
		}
	}()
}
