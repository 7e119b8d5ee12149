package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/pkg/queue"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLogs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.EmailLog
}

func newFakeLogs() *fakeLogs { return &fakeLogs{rows: map[uuid.UUID]*models.EmailLog{}} }

func (f *fakeLogs) Create(_ context.Context, el *models.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *el
	f.rows[el.ID] = &cp
	return nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].Status = models.EmailLogStatusSent
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].Status = models.EmailLogStatusFailed
	f.rows[id].ErrorMessage = reason
	return nil
}

func (f *fakeLogs) only(t *testing.T) *models.EmailLog {
	t.Helper()
	require.Len(t, f.rows, 1)
	for _, v := range f.rows {
		return v
	}
	return nil
}

type fakeQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (f *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

var testInvite = Invite{Email: "a@x.com", Amount: decimal.New(50000, -2), Currency: "INR", PaymentID: "pay_1"}

func TestRenderInvite(t *testing.T) {
	msg, err := RenderInvite(testInvite)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, InviteSubject, msg.Subject)
	assert.Contains(t, msg.Text, "Amount Paid: ₹500")
	assert.Contains(t, msg.Text, "Payment ID: pay_1")
	assert.Contains(t, msg.Text, "https://manav.in")
	assert.Contains(t, msg.Text, "support@manav.in")
}

func TestSendInvite_Direct(t *testing.T) {
	sender, logs := &fakeSender{}, newFakeLogs()
	s := NewInvites(sender, logs, nil, nil)

	require.NoError(t, s.SendInvite(context.Background(), testInvite))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@x.com", sender.sent[0].To)

	row := logs.only(t)
	assert.Equal(t, models.EmailLogStatusSent, row.Status)
	assert.Equal(t, "pay_1", *row.PaymentID)
	assert.Equal(t, models.EmailTypeWorkshopInvite, row.EmailType)
}

func TestSendInvite_DirectFailureMarksLog(t *testing.T) {
	sender, logs := &fakeSender{err: errors.New("535 auth failed")}, newFakeLogs()
	s := NewInvites(sender, logs, nil, nil)

	err := s.SendInvite(context.Background(), testInvite)
	require.Error(t, err)
	row := logs.only(t)
	assert.Equal(t, models.EmailLogStatusFailed, row.Status)
	assert.Contains(t, row.ErrorMessage, "535")
}

func TestSendInvite_Queued(t *testing.T) {
	sender, logs, q := &fakeSender{}, newFakeLogs(), &fakeQueue{}
	s := NewInvites(sender, logs, q, nil)

	require.NoError(t, s.SendInvite(context.Background(), testInvite))
	assert.Empty(t, sender.sent)
	require.Len(t, q.jobs, 1)
	row := logs.only(t)
	assert.Equal(t, models.EmailLogStatusPending, row.Status)
	assert.Equal(t, row.ID, q.jobs[0].EmailLogID)
	assert.Contains(t, q.jobs[0].BodyText, "pay_1")
}

func TestSendInvite_QueueDown(t *testing.T) {
	logs := newFakeLogs()
	s := NewInvites(&fakeSender{}, logs, &fakeQueue{err: errors.New("redis down")}, nil)

	require.Error(t, s.SendInvite(context.Background(), testInvite))
	assert.Equal(t, models.EmailLogStatusFailed, logs.only(t).Status)
}
