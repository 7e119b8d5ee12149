package payments

import (
	"context"
	"sync"

	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/models"
)

// memStore serializes transactions behind one mutex and stages writes until fn returns nil.
type memStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
	orders   map[string]*models.Order
	users    map[string]*models.User

	txCount       int
	orderUpdates  map[string]int
	accessGrants  map[string]int
	failInsertErr error
}

func newMemStore() *memStore {
	return &memStore{
		payments:     map[string]*models.Payment{},
		orders:       map[string]*models.Order{},
		users:        map[string]*models.User{},
		orderUpdates: map[string]int{},
		accessGrants: map[string]int{},
	}
}

func (s *memStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

func (s *memStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

type memTx struct {
	s      *memStore
	staged []func()
}

func (t *memTx) PaymentExists(_ context.Context, id string) (bool, error) {
	_, ok := t.s.payments[id]
	return ok, nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (*models.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	if t.s.failInsertErr != nil {
		return t.s.failInsertErr
	}
	cp := *p
	t.staged = append(t.staged, func() { t.s.payments[cp.PaymentID] = &cp })
	return nil
}

func (t *memTx) CompleteOrder(_ context.Context, orderID, paymentID string) error {
	t.staged = append(t.staged, func() {
		o := t.s.orders[orderID]
		o.PaymentStatus = models.OrderPaymentCompleted
		o.PaymentID = &paymentID
		t.s.orderUpdates[orderID]++
	})
	return nil
}

func (t *memTx) GrantAccess(_ context.Context, userID string) error {
	t.staged = append(t.staged, func() {
		t.s.users[userID].HasAccess = true
		t.s.accessGrants[userID]++
	})
	return nil
}

type fakeInvites struct {
	mu   sync.Mutex
	sent []mailer.Invite
	err  error
}

func (f *fakeInvites) SendInvite(_ context.Context, inv mailer.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, inv)
	return f.err
}

func (f *fakeInvites) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeCapturer struct {
	calls []string
	err   error
}

func (f *fakeCapturer) Capture(_ context.Context, paymentID string, amount int64, currency string) error {
	f.calls = append(f.calls, paymentID)
	return f.err
}
