// Package eventbus fans board events out over Redis Pub/Sub.
//
// Every successful board mutation is published as JSON on
// corkboard:{instance}:board_events. Delivery is at-most-once: subscribers
// that are not connected when an event is published never see it, and may
// use the Seq field to detect gaps.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/corkboard/pkg/board"
)

// Client provides instance-scoped Redis operations for board events.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL, instanceName string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewClient(opts, instanceName)
}

// InstanceName returns the namespace used for keys and channels.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish validates ev, records it as the last event, and publishes it on
// the board events channel in one transaction.
func (c *Client) Publish(ctx context.Context, ev board.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("event validation failed: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, LastEventKey(c.instanceName), data, 0)
		pipe.Publish(ctx, BoardEventsChannel(c.instanceName), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// LastEvent returns the most recently published event.
// Returns redis.Nil (check with IsNotFound) when nothing has been published.
func (c *Client) LastEvent(ctx context.Context) (*board.Event, error) {
	data, err := c.rdb.Get(ctx, LastEventKey(c.instanceName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read last event: %w", err)
	}

	var ev board.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last event: %w", err)
	}
	return &ev, nil
}

// Subscription represents an active Pub/Sub subscription to board events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan board.Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan board.Event {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
// Malformed messages are reported here and skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to board events for this instance. The subscription
// is confirmed by Redis before Subscribe returns, so events published after
// it returns are delivered.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, BoardEventsChannel(c.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to board events: %w", err)
	}

	eventsChan := make(chan board.Event, 64)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev board.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					// Report and skip; never block the reader on a full error channel.
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					default:
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound reports whether err means a key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
