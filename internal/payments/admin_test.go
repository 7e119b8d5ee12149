package payments

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav-trails/backend/internal/models"
)

func newAdminRouter(store *memStore, invites *fakeInvites) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(store, invites, nil)
	r := gin.New()
	r.GET("/admin/payments/:id", h.GetPayment)
	r.POST("/admin/payments/:id/resend-invite", h.ResendInvite)
	return r
}

func storeWithPayment(status string, email *string) *memStore {
	s := newMemStore()
	s.payments["pay_1"] = &models.Payment{
		PaymentID: "pay_1",
		Amount:    decimal.New(50000, -2),
		Currency:  "INR",
		Status:    status,
		Email:     email,
	}
	return s
}

func TestAdmin_GetPayment(t *testing.T) {
	email := "a@x.com"
	r := newAdminRouter(storeWithPayment(models.PaymentStatusCaptured, &email), &fakeInvites{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/payments/pay_1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_id":"pay_1"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/payments/pay_404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_ResendInvite(t *testing.T) {
	email := "a@x.com"
	invites := &fakeInvites{}
	r := newAdminRouter(storeWithPayment(models.PaymentStatusCaptured, &email), invites)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/payments/pay_1/resend-invite", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, invites.count())
	assert.Equal(t, "a@x.com", invites.sent[0].Email)
	assert.Equal(t, "500", invites.sent[0].Amount.String())
}

func TestAdmin_ResendInviteRejected(t *testing.T) {
	email := "a@x.com"
	cases := map[string]*memStore{
		"failed payment": storeWithPayment(models.PaymentStatusFailed, &email),
		"no email":       storeWithPayment(models.PaymentStatusCaptured, nil),
	}
	for name, store := range cases {
		t.Run(name, func(t *testing.T) {
			invites := &fakeInvites{}
			r := newAdminRouter(store, invites)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/payments/pay_1/resend-invite", nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, invites.count())
		})
	}
}
