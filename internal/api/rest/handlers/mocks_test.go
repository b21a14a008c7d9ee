package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/api/rest/middleware"
	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/service"
)

// fakeCoordinator реализует EnrollmentCoordinator и PaymentCanceller для тестов
type fakeCoordinator struct {
	applyFunc    func(ctx context.Context, input service.ApplyInput) (*service.ApplyResult, error)
	completeFunc func(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.CompleteResult, error)
	cancelFunc   func(ctx context.Context, input service.CancelInput) (*service.CancelResult, error)

	applyCalls  int
	cancelCalls int
	lastApply   service.ApplyInput
	lastCancel  service.CancelInput
}

func (f *fakeCoordinator) Apply(ctx context.Context, input service.ApplyInput) (*service.ApplyResult, error) {
	f.applyCalls++
	f.lastApply = input
	if f.applyFunc == nil {
		return &service.ApplyResult{}, nil
	}
	return f.applyFunc(ctx, input)
}

func (f *fakeCoordinator) Complete(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.CompleteResult, error) {
	if f.completeFunc == nil {
		return &service.CompleteResult{}, nil
	}
	return f.completeFunc(ctx, userID, kind, offeringID)
}

func (f *fakeCoordinator) CancelPayment(ctx context.Context, input service.CancelInput) (*service.CancelResult, error) {
	f.cancelCalls++
	f.lastCancel = input
	if f.cancelFunc == nil {
		return &service.CancelResult{PaymentID: input.PaymentID}, nil
	}
	return f.cancelFunc(ctx, input)
}

// fakePaymentReader реализует PaymentReader для тестов
type fakePaymentReader struct {
	listFunc func(ctx context.Context, userID string) ([]domain.Payment, error)
	getFunc  func(ctx context.Context, userID string, paymentID uuid.UUID) (*domain.Payment, error)
}

func (f *fakePaymentReader) ListForUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	if f.listFunc == nil {
		return nil, nil
	}
	return f.listFunc(ctx, userID)
}

func (f *fakePaymentReader) GetForUser(ctx context.Context, userID string, paymentID uuid.UUID) (*domain.Payment, error) {
	if f.getFunc == nil {
		return &domain.Payment{ID: paymentID, UserID: userID}, nil
	}
	return f.getFunc(ctx, userID, paymentID)
}

// fakeCatalogReader реализует CatalogReader для тестов
type fakeCatalogReader struct {
	listFunc func(ctx context.Context, userID string, kind domain.OfferingKind) ([]service.OfferingView, error)
	getFunc  func(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.OfferingView, error)
}

func (f *fakeCatalogReader) ListOfferings(ctx context.Context, userID string, kind domain.OfferingKind) ([]service.OfferingView, error) {
	if f.listFunc == nil {
		return nil, nil
	}
	return f.listFunc(ctx, userID, kind)
}

func (f *fakeCatalogReader) GetOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.OfferingView, error) {
	if f.getFunc == nil {
		return &service.OfferingView{}, nil
	}
	return f.getFunc(ctx, userID, kind, offeringID)
}

// testRouter собирает маршрутизатор с подставным авторизованным пользователем
func testRouter(register func(r *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterBindingValidations()

	r := gin.New()
	group := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "user-1")
		c.Next()
	})
	register(group)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeBody разбирает JSON ответа в map
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

// assertErrorCode проверяет статус и код ошибки в ответе
func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["code"] != wantCode {
		t.Errorf("expected code %q, got %v", wantCode, body["code"])
	}
}
