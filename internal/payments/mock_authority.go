package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockAuthority is an in-process authority for development and tests.
// Sessions start pending, or paid when autoPay is set.
type MockAuthority struct {
	mu       sync.Mutex
	baseURL  string
	autoPay  bool
	sessions map[string]Status
	failNext error
}

func NewMockAuthority(baseURL string, autoPay bool) *MockAuthority {
	return &MockAuthority{
		baseURL:  strings.TrimRight(baseURL, "/"),
		autoPay:  autoPay,
		sessions: make(map[string]Status),
	}
}

func (m *MockAuthority) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.sessions[req.OrderRef]; !ok {
		status := StatusPending
		if m.autoPay {
			status = StatusPaid
		}
		m.sessions[req.OrderRef] = status
	}
	return &Session{
		ID:  "mock_" + req.OrderRef,
		URL: fmt.Sprintf("%s/mock-checkout/%s", m.baseURL, req.OrderRef),
	}, nil
}

func (m *MockAuthority) QueryStatus(_ context.Context, orderRef string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return "", err
	}
	status, ok := m.sessions[orderRef]
	if !ok {
		return StatusNotFound, nil
	}
	return status, nil
}

// SetStatus overrides the outcome of an order reference
func (m *MockAuthority) SetStatus(orderRef string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[orderRef] = status
}

// FailNext makes the next call return err
func (m *MockAuthority) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockAuthority) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}
