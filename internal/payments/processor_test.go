package payments

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/models"
	"github.com/manav-trails/backend/internal/razorpay"
)

func notificationJSON(event string, entity map[string]any) []byte {
	body, _ := json.Marshal(map[string]any{
		"entity":   "event",
		"event":    event,
		"contains": []string{"payment"},
		"payload":  map[string]any{"payment": map[string]any{"entity": entity}},
	})
	return body
}

func capturedEntity() map[string]any {
	return map[string]any{
		"id":       "pay_1",
		"order_id": "ord_1",
		"amount":   50000,
		"currency": "INR",
		"status":   "captured",
		"method":   "upi",
		"email":    "a@x.com",
		"notes":    map[string]any{"userId": "u1"},
	}
}

func mustParse(t *testing.T, raw []byte) *razorpay.Notification {
	t.Helper()
	n, err := razorpay.ParseNotification(raw)
	require.NoError(t, err)
	return n
}

func seededStore() *memStore {
	s := newMemStore()
	s.orders["ord_1"] = &models.Order{ID: "ord_1", PaymentStatus: models.OrderPaymentPending}
	s.users["u1"] = &models.User{ID: "u1", FullName: "Asha"}
	return s
}

func TestProcess_CapturedScenario(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)
	n := mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity()))

	ack, err := p.Process(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, Ack{Status: AckStatusSuccess}, ack)

	rec, err := store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "500", rec.Amount.String())
	assert.Equal(t, "INR", rec.Currency)
	assert.Equal(t, "captured", rec.Status)
	assert.Equal(t, razorpay.EventPaymentCaptured, rec.Metadata.WebhookEvent)
	assert.Contains(t, string(rec.Metadata.RawResponse), `"pay_1"`)
	require.NotNil(t, rec.OrderID)
	assert.Equal(t, "ord_1", *rec.OrderID)

	assert.Equal(t, models.OrderPaymentCompleted, store.orders["ord_1"].PaymentStatus)
	assert.Equal(t, "pay_1", *store.orders["ord_1"].PaymentID)
	assert.True(t, store.users["u1"].HasAccess)

	p.Wait()
	require.Equal(t, 1, invites.count())
	assert.Equal(t, "a@x.com", invites.sent[0].Email)
	assert.Equal(t, "pay_1", invites.sent[0].PaymentID)
	assert.Equal(t, "500", invites.sent[0].Amount.String())
}

func TestProcess_DuplicateDeliveryIsNoop(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)
	raw := notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())

	for i := 0; i < 3; i++ {
		ack, err := p.Process(context.Background(), mustParse(t, raw))
		require.NoError(t, err)
		assert.Equal(t, AckStatusSuccess, ack.Status)
	}

	assert.Equal(t, 1, store.paymentCount())
	assert.Equal(t, 1, store.orderUpdates["ord_1"])
	assert.Equal(t, 1, store.accessGrants["u1"])
	p.Wait()
	assert.Equal(t, 1, invites.count())
}

func TestProcess_ConcurrentDeliveries(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)
	raw := notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := razorpay.ParseNotification(raw)
			if err != nil {
				return
			}
			_, _ = p.Process(context.Background(), n)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.paymentCount())
	assert.Equal(t, 1, store.orderUpdates["ord_1"])
	assert.Equal(t, 1, store.accessGrants["u1"])
	p.Wait()
	assert.Equal(t, 1, invites.count())
}

func TestProcess_FailedNeverSendsInvite(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)
	entity := capturedEntity()
	entity["status"] = "failed"

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentFailed, entity)))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)

	assert.Equal(t, 1, store.paymentCount())
	p.Wait()
	assert.Zero(t, invites.count())
	assert.Equal(t, models.OrderPaymentPending, store.orders["ord_1"].PaymentStatus)
	assert.False(t, store.users["u1"].HasAccess)
}

func TestProcess_CapturedWithMissingOrderAndUser(t *testing.T) {
	store, invites := newMemStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
	assert.Equal(t, 1, store.paymentCount())
	assert.Empty(t, store.orderUpdates)
	assert.Empty(t, store.accessGrants)
	p.Wait()
	assert.Equal(t, 1, invites.count())
}

func TestProcess_CapturedWithoutReferences(t *testing.T) {
	store := seededStore()
	p := NewProcessor(store, &fakeInvites{}, nil, ProcessorConfig{}, nil)
	entity := capturedEntity()
	delete(entity, "order_id")
	entity["notes"] = []any{}
	delete(entity, "currency")

	_, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, entity)))
	require.NoError(t, err)
	rec, err := store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Nil(t, rec.OrderID)
	assert.Equal(t, models.DefaultCurrency, rec.Currency)
	assert.Empty(t, store.orderUpdates)
	assert.Empty(t, store.accessGrants)
}

func TestProcess_AlreadyAppliedOrderAndUserUntouched(t *testing.T) {
	store := seededStore()
	store.orders["ord_1"].PaymentStatus = models.OrderPaymentCompleted
	store.users["u1"].HasAccess = true
	p := NewProcessor(store, &fakeInvites{}, nil, ProcessorConfig{}, nil)

	_, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())))
	require.NoError(t, err)
	assert.Equal(t, 1, store.paymentCount())
	assert.Zero(t, store.orderUpdates["ord_1"])
	assert.Zero(t, store.accessGrants["u1"])
}

func TestProcess_MalformedPaymentNeverTouchesStore(t *testing.T) {
	store := seededStore()
	p := NewProcessor(store, &fakeInvites{}, nil, ProcessorConfig{}, nil)

	for _, id := range []any{nil, 42, ""} {
		entity := capturedEntity()
		entity["id"] = id
		_, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, entity)))
		assert.ErrorIs(t, err, razorpay.ErrMalformedPayload)
	}
	assert.Zero(t, store.txCount)
}

func TestProcess_UntrackedProductSkipped(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	tracked := func(id string) bool { return id == "hiking-workshop" }
	p := NewProcessor(store, invites, nil, ProcessorConfig{TrackedProduct: tracked}, nil)

	entity := capturedEntity()
	entity["notes"] = map[string]any{"userId": "u1", "productId": "merch"}
	outcome, err := p.Commit(context.Background(), razorpay.EventPaymentCaptured, mustPayment(t, entity))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, store.paymentCount())

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, entity)))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
	p.Wait()
	assert.Zero(t, invites.count())
	assert.False(t, store.users["u1"].HasAccess)

	entity["notes"] = map[string]any{"userId": "u1", "productId": "hiking-workshop"}
	outcome, err = p.Commit(context.Background(), razorpay.EventPaymentCaptured, mustPayment(t, entity))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestProcess_CommitFailureIsLoggedNotPropagated(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	store.failInsertErr = errors.New("connection reset")
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())))
	require.NoError(t, err)
	assert.Equal(t, AckStatusErrorLogged, ack.Status)
	assert.NotEmpty(t, ack.Message)
	assert.Zero(t, store.paymentCount())
	assert.Equal(t, models.OrderPaymentPending, store.orders["ord_1"].PaymentStatus)
	p.Wait()
	assert.Zero(t, invites.count())
}

func TestProcess_InviteFailureKeepsCommit(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{err: errors.New("smtp down")}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
	assert.Equal(t, 1, store.paymentCount())
	assert.True(t, store.users["u1"].HasAccess)
}

func TestProcess_NoEmailNoInvite(t *testing.T) {
	store, invites := seededStore(), &fakeInvites{}
	p := NewProcessor(store, invites, nil, ProcessorConfig{}, nil)
	entity := capturedEntity()
	delete(entity, "email")

	_, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, entity)))
	require.NoError(t, err)
	assert.Equal(t, 1, store.paymentCount())
	p.Wait()
	assert.Zero(t, invites.count())
}

func TestProcess_AuthorizedCapturesWithoutCommit(t *testing.T) {
	store, capturer := seededStore(), &fakeCapturer{}
	p := NewProcessor(store, &fakeInvites{}, capturer, ProcessorConfig{CaptureOnAuthorize: true}, nil)
	entity := capturedEntity()
	entity["status"] = "authorized"

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentAuthorized, entity)))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
	assert.Equal(t, []string{"pay_1"}, capturer.calls)
	assert.Zero(t, store.txCount)
}

func TestProcess_AuthorizedCaptureFailureStillAcks(t *testing.T) {
	capturer := &fakeCapturer{err: razorpay.ErrCaptureFailed}
	p := NewProcessor(newMemStore(), &fakeInvites{}, capturer, ProcessorConfig{CaptureOnAuthorize: true}, nil)
	entity := capturedEntity()
	entity["status"] = "authorized"

	ack, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentAuthorized, entity)))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
}

func TestProcess_AuthorizedWithoutCaptureSwitch(t *testing.T) {
	capturer := &fakeCapturer{}
	p := NewProcessor(newMemStore(), &fakeInvites{}, capturer, ProcessorConfig{}, nil)
	entity := capturedEntity()
	entity["status"] = "authorized"

	_, err := p.Process(context.Background(), mustParse(t, notificationJSON(razorpay.EventPaymentAuthorized, entity)))
	require.NoError(t, err)
	assert.Empty(t, capturer.calls)
}

func TestProcess_UnknownEventIgnored(t *testing.T) {
	store := seededStore()
	p := NewProcessor(store, &fakeInvites{}, nil, ProcessorConfig{}, nil)

	ack, err := p.Process(context.Background(), mustParse(t, []byte(`{"event":"refund.processed","payload":{}}`)))
	require.NoError(t, err)
	assert.Equal(t, AckStatusSuccess, ack.Status)
	assert.Zero(t, store.txCount)
}

func mustPayment(t *testing.T, entity map[string]any) *razorpay.PaymentEntity {
	t.Helper()
	p, err := mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, entity)).Payment()
	require.NoError(t, err)
	return p
}

// slowInvites blocks every send until release is closed.
type slowInvites struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (s *slowInvites) SendInvite(ctx context.Context, _ mailer.Invite) error {
	close(s.started)
	<-s.release
	s.ctxErr <- ctx.Err()
	return nil
}

func TestProcess_AckDoesNotWaitForInvite(t *testing.T) {
	invites := &slowInvites{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	p := NewProcessor(seededStore(), invites, nil, ProcessorConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Ack, 1)
	go func() {
		ack, err := p.Process(ctx, mustParse(t, notificationJSON(razorpay.EventPaymentCaptured, capturedEntity())))
		assert.NoError(t, err)
		done <- ack
	}()

	select {
	case ack := <-done:
		assert.Equal(t, AckStatusSuccess, ack.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("Process blocked on the invite send")
	}

	// The request is over; the send keeps its own deadline.
	cancel()
	<-invites.started
	close(invites.release)
	p.Wait()
	assert.NoError(t, <-invites.ctxErr)
}

func TestNewProcessor_InviteTimeoutDefault(t *testing.T) {
	invites := &fakeInvites{}
	p := NewProcessor(seededStore(), invites, nil, ProcessorConfig{}, nil)
	assert.Equal(t, DefaultInviteTimeout, p.cfg.InviteTimeout)

	p = NewProcessor(seededStore(), invites, nil, ProcessorConfig{InviteTimeout: time.Second}, nil)
	assert.Equal(t, time.Second, p.cfg.InviteTimeout)
}
