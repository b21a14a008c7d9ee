package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/service"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

func newPaymentRouter(coordinator *fakeCoordinator, reader *fakePaymentReader) *gin.Engine {
	handler := NewPaymentHandler(coordinator, reader, logger.NewNop())
	return testRouter(func(r *gin.RouterGroup) {
		r.GET("/payments", handler.List)
		r.GET("/payments/:id", handler.Get)
		r.POST("/payments/:id/cancel", handler.Cancel)
	})
}

func TestCancelHandlerSuccess(t *testing.T) {
	paymentID := uuid.New()
	cancelledAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	coordinator := &fakeCoordinator{
		cancelFunc: func(ctx context.Context, input service.CancelInput) (*service.CancelResult, error) {
			return &service.CancelResult{PaymentID: input.PaymentID, CancelledAt: cancelledAt}, nil
		},
	}
	r := newPaymentRouter(coordinator, &fakePaymentReader{})

	w := doRequest(r, http.MethodPost, "/payments/"+paymentID.String()+"/cancel",
		`{"reason": "schedule conflict"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if coordinator.lastCancel.UserID != "user-1" {
		t.Errorf("expected user-1 passed to service, got %q", coordinator.lastCancel.UserID)
	}
	if coordinator.lastCancel.PaymentID != paymentID {
		t.Errorf("expected payment %s, got %s", paymentID, coordinator.lastCancel.PaymentID)
	}
	if coordinator.lastCancel.Reason != "schedule conflict" {
		t.Errorf("expected reason passed through, got %q", coordinator.lastCancel.Reason)
	}

	body := decodeBody(t, w)
	if body["payment_id"] != paymentID.String() {
		t.Errorf("expected payment_id %s, got %v", paymentID, body["payment_id"])
	}
}

func TestCancelHandlerWithoutBody(t *testing.T) {
	coordinator := &fakeCoordinator{}
	r := newPaymentRouter(coordinator, &fakePaymentReader{})

	w := doRequest(r, http.MethodPost, "/payments/"+uuid.NewString()+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if coordinator.lastCancel.Reason != "" {
		t.Errorf("expected empty reason, got %q", coordinator.lastCancel.Reason)
	}
}

func TestCancelHandlerBadPaymentID(t *testing.T) {
	coordinator := &fakeCoordinator{}
	r := newPaymentRouter(coordinator, &fakePaymentReader{})

	w := doRequest(r, http.MethodPost, "/payments/not-a-uuid/cancel", "")
	assertErrorCode(t, w, http.StatusNotFound, "not_found")
	if coordinator.cancelCalls != 0 {
		t.Errorf("expected service untouched, got %d calls", coordinator.cancelCalls)
	}
}

func TestCancelHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"foreign payment", domain.ErrNotOwner, http.StatusForbidden, "forbidden"},
		{"already cancelled", domain.ErrAlreadyCancelled, http.StatusBadRequest, "already_cancelled"},
		{"unknown payment", domain.NewNotFoundError("payment", uuid.NewString()), http.StatusNotFound, "not_found"},
		{"cancel in progress", domain.ErrOperationInProgress, http.StatusConflict, "operation_in_progress"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coordinator := &fakeCoordinator{
				cancelFunc: func(ctx context.Context, input service.CancelInput) (*service.CancelResult, error) {
					return nil, tc.err
				},
			}
			r := newPaymentRouter(coordinator, &fakePaymentReader{})

			w := doRequest(r, http.MethodPost, "/payments/"+uuid.NewString()+"/cancel", "")
			assertErrorCode(t, w, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestListPaymentsHandler(t *testing.T) {
	reader := &fakePaymentReader{
		listFunc: func(ctx context.Context, userID string) ([]domain.Payment, error) {
			if userID != "user-1" {
				t.Errorf("expected user-1, got %q", userID)
			}
			return []domain.Payment{
				{ID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(10000)},
				{ID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(20000)},
			}, nil
		},
	}
	r := newPaymentRouter(&fakeCoordinator{}, reader)

	w := doRequest(r, http.MethodGet, "/payments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	payments, ok := body["payments"].([]any)
	if !ok {
		t.Fatalf("expected payments array, got %v", body["payments"])
	}
	if len(payments) != 2 {
		t.Errorf("expected 2 payments, got %d", len(payments))
	}
}

func TestListPaymentsHandlerEmpty(t *testing.T) {
	r := newPaymentRouter(&fakeCoordinator{}, &fakePaymentReader{})

	w := doRequest(r, http.MethodGet, "/payments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	payments, ok := body["payments"].([]any)
	if !ok {
		t.Fatalf("expected empty payments array, got %v", body["payments"])
	}
	if len(payments) != 0 {
		t.Errorf("expected no payments, got %d", len(payments))
	}
}

func TestGetPaymentHandler(t *testing.T) {
	paymentID := uuid.New()
	reader := &fakePaymentReader{
		getFunc: func(ctx context.Context, userID string, id uuid.UUID) (*domain.Payment, error) {
			return &domain.Payment{ID: id, UserID: userID, Amount: decimal.NewFromInt(10000)}, nil
		},
	}
	r := newPaymentRouter(&fakeCoordinator{}, reader)

	w := doRequest(r, http.MethodGet, "/payments/"+paymentID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["id"] != paymentID.String() {
		t.Errorf("expected payment %s, got %v", paymentID, body["id"])
	}
}

func TestGetPaymentHandlerForeign(t *testing.T) {
	reader := &fakePaymentReader{
		getFunc: func(ctx context.Context, userID string, id uuid.UUID) (*domain.Payment, error) {
			return nil, domain.ErrNotOwner
		},
	}
	r := newPaymentRouter(&fakeCoordinator{}, reader)

	w := doRequest(r, http.MethodGet, "/payments/"+uuid.NewString(), "")
	assertErrorCode(t, w, http.StatusForbidden, "forbidden")
}
