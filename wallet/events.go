package wallet

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/balansai/walletkit/kafka"
	"go.uber.org/zap"
)

// MutationEvent announces that a resource changed on the backend
type MutationEvent struct {
	Resource string    `json:"resource"`
	UserID   int64     `json:"user_id,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	At       time.Time `json:"at"`
}

// DecodeMutationEvent parses an event and checks it names a resource
func DecodeMutationEvent(b []byte) (MutationEvent, error) {
	var ev MutationEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, ErrDecodeEvent(err)
	}
	if ev.Resource == "" {
		return ev, ErrEmptyResource
	}
	return ev, nil
}

// InvalidationHandler applies mutation events from other writers of the backend,
// such as the bot, to this session's cache.
// Events for other users and events this service published are ignored.
func (s *Service) InvalidationHandler() kafka.Handler {
	return func(_ context.Context, msg *kafka.Message) error {
		ev, err := DecodeMutationEvent(msg.Value)
		if err != nil {
			// a malformed event will not parse on retry either
			s.log.Warn("dropping mutation event",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			return nil
		}

		if ev.Origin != "" && ev.Origin == s.origin {
			return nil
		}
		if s.userID != 0 && ev.UserID != 0 && ev.UserID != s.userID {
			return nil
		}

		s.inv.Mutated(ev.Resource)
		s.log.Debug("applied mutation event",
			zap.String("resource", ev.Resource),
			zap.Int64("user_id", ev.UserID),
		)
		return nil
	}
}

// announce publishes a mutation event; failures are logged, the mutation already succeeded
func (s *Service) announce(ctx context.Context, resource string) {
	if s.publisher == nil {
		return
	}

	ev := MutationEvent{Resource: resource, UserID: s.userID, Origin: s.origin, At: time.Now().UTC()}
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to encode mutation event", zap.Error(ErrEncodeEvent(err)))
		return
	}

	msg := &kafka.Message{Value: b}
	if s.userID != 0 {
		msg.Key = []byte(strconv.FormatInt(s.userID, 10))
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("failed to publish mutation event",
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}
