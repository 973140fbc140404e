package pubsub

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub"
)

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType is the topic an event is published on.
type EventType string

const (
	EventMatchCreated EventType = "match-created"
)

// Handler consumes one encoded message from a local subscription.
type Handler func(ctx context.Context, data []byte) error

// Local is an in-process bus. Messages are msgpack encoded exactly like on
// the GCP topic and handed to subscribers on their own goroutine.
type Local struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// PushRequest is the body Pub/Sub posts to a push subscription endpoint.
type PushRequest struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data       []byte            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
}
