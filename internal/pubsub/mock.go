package pubsub

import (
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MockPubSubClient records published events for tests. Payloads go through
// the same msgpack encoding as the real clients, so what a test decodes is
// what a subscriber would see. It is safe for concurrent use.
type MockPubSubClient struct {
	mu sync.Mutex

	SendMessageFunc    func(topic EventType, data any) error
	ProcessMessageFunc func(data []byte, returnValue any) error

	SendMessageCalls    []SendMessageCall
	ProcessMessageCalls []ProcessMessageCall
}

// SendMessageCall is one publish: the original value and its encoded form.
type SendMessageCall struct {
	Topic   EventType
	Data    any
	Payload []byte
}

// ProcessMessageCall holds the arguments for a call to ProcessMessage.
type ProcessMessageCall struct {
	Data        []byte
	ReturnValue any
}

// NewMock creates a new mock PubSubClient.
func NewMock() *MockPubSubClient {
	return &MockPubSubClient{}
}

// Reset clears all call records.
func (m *MockPubSubClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMessageCalls = nil
	m.ProcessMessageCalls = nil
}

// SendMessage encodes data and records the call. Values msgpack cannot
// encode fail here as they would on a real topic.
func (m *MockPubSubClient) SendMessage(topic EventType, data any) error {
	payload, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMessageCalls = append(m.SendMessageCalls, SendMessageCall{Topic: topic, Data: data, Payload: payload})
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(topic, data)
	}
	return nil
}

// Published decodes the payload of the i-th publish into v.
func (m *MockPubSubClient) Published(i int, v any) (EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.SendMessageCalls) {
		return "", fmt.Errorf("no publish #%d, have %d", i, len(m.SendMessageCalls))
	}
	call := m.SendMessageCalls[i]
	if err := msgpack.Unmarshal(call.Payload, v); err != nil {
		return call.Topic, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return call.Topic, nil
}

// ProcessMessage records the call and decodes with msgpack unless
// ProcessMessageFunc overrides it.
func (m *MockPubSubClient) ProcessMessage(data []byte, returnValue any) error {
	m.mu.Lock()
	m.ProcessMessageCalls = append(m.ProcessMessageCalls, ProcessMessageCall{Data: data, ReturnValue: returnValue})
	fn := m.ProcessMessageFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(data, returnValue)
	}
	return msgpack.Unmarshal(data, returnValue)
}
