package pubsub

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

func NewLocal() *Local {
	return &Local{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h for every message published on topic.
func (l *Local) Subscribe(topic EventType, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[topic] = append(l.handlers[topic], h)
}

// SendMessage encodes data and dispatches it asynchronously. Handler errors
// are logged; there is no redelivery.
func (l *Local) SendMessage(topic EventType, data any) error {
	payload, err := msgpack.Marshal(data)
	if err != nil {
		log.Error("MessagePack marshal error", "error", err)
		return err
	}

	l.mu.RLock()
	handlers := append([]Handler(nil), l.handlers[topic]...)
	l.mu.RUnlock()

	if len(handlers) == 0 {
		log.Warn("No local subscriber for topic", "topic", topic)
		return nil
	}
	for _, h := range handlers {
		l.wg.Add(1)
		go func(h Handler) {
			defer l.wg.Done()
			if err := h(context.Background(), payload); err != nil {
				log.Error("Local subscriber failed", "error", err, "topic", topic)
			}
		}(h)
	}
	return nil
}

func (l *Local) ProcessMessage(data []byte, returnValue any) error {
	return decode(data, returnValue)
}

// Wait blocks until every dispatched message has been handled.
func (l *Local) Wait() {
	l.wg.Wait()
}
