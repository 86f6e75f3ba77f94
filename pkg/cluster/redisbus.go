// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package cluster

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// defaultChannel is the pub/sub channel carrying peer notifications.
const defaultChannel = "cluster_api"

// RedisBus is a notification bus backed by a redis redirector. Every peer
// subscribes to one channel; published messages are delivered to all peers
// including the publisher.
type RedisBus struct {
	logger *zap.Logger
	client *redis.Client
	pubsub *redis.PubSub

	mu       sync.Mutex
	handlers []func(Message)
	closed   chan struct{}
}

// NewRedisBus connects to the redirector at address and starts the receive
// loop.
func NewRedisBus(logger *zap.Logger, address string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: address})
	if err := client.Ping().Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	bus := &RedisBus{
		logger: logger,
		client: client,
		pubsub: client.Subscribe(defaultChannel),
		closed: make(chan struct{}),
	}
	go bus.receive()
	return bus, nil
}

func (bus *RedisBus) receive() {
	for {
		select {
		case <-bus.closed:
			return
		case in, ok := <-bus.pubsub.Channel():
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(in.Payload), &msg); err != nil {
				bus.logger.Warn("dropping malformed notification", zap.Error(err))
				continue
			}
			bus.mu.Lock()
			handlers := append([]func(Message){}, bus.handlers...)
			bus.mu.Unlock()
			for _, handler := range handlers {
				handler(msg)
			}
		}
	}
}

// Publish sends the message to every peer.
func (bus *RedisBus) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(bus.client.Publish(defaultChannel, string(data)).Err())
}

// Subscribe registers a handler for incoming messages.
func (bus *RedisBus) Subscribe(handler func(Message)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers = append(bus.handlers, handler)
}

// Address returns the redirector address this bus is connected to.
func (bus *RedisBus) Address() string {
	return bus.client.Options().Addr
}

// Close stops the receive loop and closes the connection.
func (bus *RedisBus) Close() error {
	close(bus.closed)
	return Error.Wrap(errs.Combine(bus.pubsub.Close(), bus.client.Close()))
}
