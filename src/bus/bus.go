// Package bus carries Signal messages between agents over Redis pub/sub.
// Delivery is fire-and-forget: a message published while no subscriber is
// listening is lost.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptoagents/src/model"

	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"
)

const (
	ChannelSignals  = "trading_signals"
	ChannelApproved = "approved_signals"

	DeadLetterKey = "dead_signals"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

type RedisBus struct {
	client        *redis.Client
	log           *logger.Entry
	deadLetterMax int64
}

func NewRedisBus(client *redis.Client, deadLetterMax int64) *RedisBus {
	if deadLetterMax <= 0 {
		deadLetterMax = 1000
	}
	return &RedisBus{
		client:        client,
		log:           logger.WithField("component", "bus"),
		deadLetterMax: deadLetterMax,
	}
}

// Publish JSON-encodes the signal onto channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, signal model.Signal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	receivers, err := b.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	b.log.WithFields(logger.Fields{
		"channel":   channel,
		"symbol":    signal.Symbol,
		"side":      signal.Side,
		"id":        signal.ID,
		"receivers": receivers,
	}).Debug("signal published")
	return nil
}

// Subscribe listens on channel. The subscription is confirmed before it is
// returned, so anything published afterwards is delivered.
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	sub := &Subscription{
		channel: channel,
		ps:      ps,
		out:     make(chan model.Signal, 64),
		done:    make(chan struct{}),
		log:     b.log.WithField("channel", channel),
	}
	go sub.pump()
	return sub, nil
}

type deadLetter struct {
	Signal   model.Signal `json:"signal"`
	Error    string       `json:"error"`
	FailedAt time.Time    `json:"failed_at"`
}

// DeadLetter keeps a capped list of signals whose execution failed so they
// can be inspected or replayed by hand.
func (b *RedisBus) DeadLetter(ctx context.Context, signal model.Signal, cause error) error {
	entry := deadLetter{Signal: signal, FailedAt: time.Now().UTC()}
	if cause != nil {
		entry.Error = cause.Error()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, DeadLetterKey, payload)
	pipe.LTrim(ctx, DeadLetterKey, -b.deadLetterMax, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push dead letter: %w", err)
	}
	return nil
}

type Subscription struct {
	channel string
	ps      *redis.PubSub
	out     chan model.Signal
	done    chan struct{}
	log     *logger.Entry

	closeOnce sync.Once
}

func (s *Subscription) pump() {
	defer close(s.out)

	for msg := range s.ps.Channel() {
		var signal model.Signal
		if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
			s.log.WithError(err).WithField("payload", msg.Payload).Warn("dropping malformed signal")
			continue
		}
		select {
		case s.out <- signal:
		case <-s.done:
			return
		}
	}
}

// Signals is closed when the subscription ends.
func (s *Subscription) Signals() <-chan model.Signal {
	return s.out
}

func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
