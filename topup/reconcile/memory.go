package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryIndex is an in-process Index.
type MemoryIndex struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*PendingRequest
	byRef  map[MessageRef]int64
	now    func() time.Time
}

// NewMemoryIndex constructs an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byID:  make(map[int64]*PendingRequest),
		byRef: make(map[MessageRef]int64),
		now:   time.Now,
	}
}

// Create implements Index.
func (m *MemoryIndex) Create(_ context.Context, req PendingRequest) (PendingRequest, error) {
	if req.Amount <= 0 {
		return PendingRequest{}, fmt.Errorf("create request: amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = m.nextID
	req.Status = StatusPending
	req.OperatorRef = MessageRef{}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = m.now()
	}
	stored := req
	m.byID[req.ID] = &stored
	return req, nil
}

// Bind implements Index.
func (m *MemoryIndex) Bind(_ context.Context, id int64, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("bind %d: %w", id, ErrNotFound)
	}
	if _, taken := m.byRef[ref]; taken {
		return fmt.Errorf("bind %d: message %d/%d already bound", id, ref.ChatID, ref.MessageID)
	}
	if !req.OperatorRef.Zero() {
		delete(m.byRef, req.OperatorRef)
	}
	req.OperatorRef = ref
	m.byRef[ref] = id
	return nil
}

// Consume implements Index.
func (m *MemoryIndex) Consume(_ context.Context, ref MessageRef, d Decision, operator string, at time.Time) (PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[ref]
	if !ok {
		return PendingRequest{}, ErrNotFound
	}
	req := m.byID[id]
	if req.Status != StatusPending {
		return PendingRequest{}, ErrNotFound
	}
	req.Status = d.Status()
	req.DecidedBy = operator
	req.DecidedAt = at
	return *req, nil
}

// Reopen implements Index.
func (m *MemoryIndex) Reopen(_ context.Context, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[ref]
	if !ok {
		return ErrNotFound
	}
	req := m.byID[id]
	req.Status = StatusPending
	req.DecidedBy = ""
	req.DecidedAt = time.Time{}
	return nil
}

// ClaimRetry implements Index.
func (m *MemoryIndex) ClaimRetry(_ context.Context, id, userID int64) (PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.byID[id]
	if !ok || req.UserID != userID || req.Status != StatusRejected || req.RetryClaimed {
		return PendingRequest{}, ErrNotRetryable
	}
	req.RetryClaimed = true
	return *req, nil
}

// Get implements Index.
func (m *MemoryIndex) Get(_ context.Context, id int64) (PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.byID[id]
	if !ok {
		return PendingRequest{}, ErrNotFound
	}
	return *req, nil
}

// Pending implements Index.
func (m *MemoryIndex) Pending(_ context.Context, limit int) ([]PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PendingRequest
	for _, req := range m.byID {
		if req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
