package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	matchesRecorded     int
	matchesEdited       int
	matchesDeleted      int
	lockedEditRejected  int
	locksAssigned       int
	lockFailures        int
	pinAttempts         map[string]int
	processingDurations []float64
	slackNotifSent      int
	slackNotifFailed    int
	startupTime         float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		pinAttempts:         make(map[string]int),
		processingDurations: make([]float64, 0),
	}
}

func (m *Mock) IncMatchesRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesRecorded++
}

func (m *Mock) IncMatchesEdited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesEdited++
}

func (m *Mock) IncMatchesDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesDeleted++
}

func (m *Mock) IncLockedEditRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedEditRejected++
}

func (m *Mock) IncLocksAssigned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locksAssigned++
}

func (m *Mock) IncLockFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockFailures++
}

func (m *Mock) IncPinAttempt(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinAttempts[operation+"/"+outcome]++
}

func (m *Mock) ObserveProcessingDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processingDurations = append(m.processingDurations, duration)
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// MatchesRecorded returns the number of times IncMatchesRecorded was called.
func (m *Mock) MatchesRecorded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesRecorded
}

// MatchesEdited returns the number of times IncMatchesEdited was called.
func (m *Mock) MatchesEdited() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesEdited
}

// MatchesDeleted returns the number of times IncMatchesDeleted was called.
func (m *Mock) MatchesDeleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesDeleted
}

// LockedEditRejected returns the number of times IncLockedEditRejected was called.
func (m *Mock) LockedEditRejected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedEditRejected
}

// LocksAssigned returns the number of times IncLocksAssigned was called.
func (m *Mock) LocksAssigned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locksAssigned
}

// LockFailures returns the number of times IncLockFailures was called.
func (m *Mock) LockFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockFailures
}

// PinAttempts returns how often IncPinAttempt was called with operation and outcome.
func (m *Mock) PinAttempts(operation, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pinAttempts[operation+"/"+outcome]
}

// ProcessingDurations returns every observed processing duration.
func (m *Mock) ProcessingDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.processingDurations...)
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
