// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package cluster

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the error class for the cluster notification bus.
var Error = errs.Class("cluster error")

// MethodLoadSystemStore asks every peer to reload its catalog.
const MethodLoadSystemStore = "load_system_store"

// MethodAPICluster is the api namespace for peer-to-peer notifications.
const MethodAPICluster = "cluster_api"

// Message is a best-effort notification fanned out to every peer,
// including the publisher.
type Message struct {
	MethodAPI  string `json:"method_api"`
	MethodName string `json:"method_name"`
	Target     string `json:"target"`
}

// LoadSystemStoreMessage is the reload broadcast published after every
// committed mutation batch.
func LoadSystemStoreMessage() Message {
	return Message{
		MethodAPI:  MethodAPICluster,
		MethodName: MethodLoadSystemStore,
		Target:     "",
	}
}

// Bus fans notifications out to all peers. Delivery is best effort; peers
// self-heal missed notifications with age-based refresh.
type Bus interface {
	// Publish sends the message to every subscriber on every peer,
	// including this process.
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers a handler for incoming messages. Handlers run on
	// the delivery path, so a slow handler delays later messages.
	Subscribe(handler func(Message))
	Close() error
}
