package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/lock"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// fakeOfferingRepo реализует repository.OfferingRepository для тестов
type fakeOfferingRepo struct {
	mu        sync.Mutex
	offerings map[uuid.UUID]domain.Offering
	order     []uuid.UUID
	getErr    error
	listErr   error
}

func newFakeOfferingRepo(offerings ...domain.Offering) *fakeOfferingRepo {
	repo := &fakeOfferingRepo{offerings: make(map[uuid.UUID]domain.Offering)}
	for _, offering := range offerings {
		repo.offerings[offering.ID] = offering
		repo.order = append(repo.order, offering.ID)
	}
	return repo
}

func (r *fakeOfferingRepo) Create(ctx context.Context, offering domain.Offering) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offerings[offering.ID] = offering
	r.order = append(r.order, offering.ID)
	return nil
}

func (r *fakeOfferingRepo) GetByKindID(ctx context.Context, kind domain.OfferingKind, id uuid.UUID) (*domain.Offering, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	offering, ok := r.offerings[id]
	if !ok || offering.Kind != kind {
		return nil, repository.ErrNotFound
	}
	return &offering, nil
}

func (r *fakeOfferingRepo) ListByKind(ctx context.Context, kind domain.OfferingKind) ([]domain.Offering, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []domain.Offering
	for _, id := range r.order {
		if offering := r.offerings[id]; offering.Kind == kind {
			result = append(result, offering)
		}
	}
	return result, nil
}

func (r *fakeOfferingRepo) UpdateRegistrationCounts(ctx context.Context, kind domain.OfferingKind, counts map[uuid.UUID]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, count := range counts {
		if offering, ok := r.offerings[id]; ok && offering.Kind == kind {
			offering.RegistrationCount = count
			r.offerings[id] = offering
		}
	}
	return nil
}

// regKey ключ уникальности пары пользователь-предложение
type regKey struct {
	userID string
	kind   domain.OfferingKind
	id     uuid.UUID
}

// fakeRegistrationRepo реализует repository.RegistrationRepository для тестов
type fakeRegistrationRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]domain.Registration
	byKey map[regKey]uuid.UUID

	createCalls int
	existsCalls int

	createErr  error
	existsFunc func() (bool, error)
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		byID:  make(map[uuid.UUID]domain.Registration),
		byKey: make(map[regKey]uuid.UUID),
	}
}

func (r *fakeRegistrationRepo) Create(ctx context.Context, registration domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	key := regKey{registration.UserID, registration.OfferingKind, registration.OfferingID}
	if _, ok := r.byKey[key]; ok {
		return repository.ErrDuplicate
	}
	r.byID[registration.ID] = registration
	r.byKey[key] = registration.ID
	return nil
}

func (r *fakeRegistrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &registration, nil
}

func (r *fakeRegistrationRepo) GetByUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[regKey{userID, kind, offeringID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	registration := r.byID[id]
	return &registration, nil
}

func (r *fakeRegistrationRepo) ExistsForUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.existsCalls++
	if r.existsFunc != nil {
		return r.existsFunc()
	}
	_, ok := r.byKey[regKey{userID, kind, offeringID}]
	return ok, nil
}

func (r *fakeRegistrationRepo) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration, ok := r.byID[id]
	if !ok || registration.Status != domain.RegistrationStatusActive {
		return repository.ErrNotFound
	}
	registration.Status = domain.RegistrationStatusCompleted
	registration.CompletedAt = &completedAt
	r.byID[id] = registration
	return nil
}

func (r *fakeRegistrationRepo) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration, ok := r.byID[id]
	if !ok || registration.Status != domain.RegistrationStatusActive {
		return repository.ErrNotFound
	}
	registration.Status = domain.RegistrationStatusCancelled
	registration.CancelledAt = &cancelledAt
	r.byID[id] = registration
	return nil
}

func (r *fakeRegistrationRepo) OfferingIDsForUser(ctx context.Context, userID string, kind domain.OfferingKind) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, registration := range r.byID {
		if registration.UserID == userID && registration.OfferingKind == kind &&
			registration.Status != domain.RegistrationStatusCancelled {
			ids = append(ids, registration.OfferingID)
		}
	}
	return ids, nil
}

func (r *fakeRegistrationRepo) CountRegisteredByOfferings(ctx context.Context, kind domain.OfferingKind, offeringIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(offeringIDs))
	for _, id := range offeringIDs {
		wanted[id] = true
	}
	counts := make(map[uuid.UUID]int)
	for _, registration := range r.byID {
		if registration.OfferingKind == kind && wanted[registration.OfferingID] &&
			registration.Status != domain.RegistrationStatusCancelled {
			counts[registration.OfferingID]++
		}
	}
	return counts, nil
}

// setStatus выставляет статус регистрации напрямую, минуя переходы
func (r *fakeRegistrationRepo) setStatus(id uuid.UUID, status domain.RegistrationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	registration := r.byID[id]
	registration.Status = status
	r.byID[id] = registration
}

// fakePaymentRepo реализует repository.PaymentRepository для тестов
type fakePaymentRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Payment

	createCalls    int
	forUpdateCalls int

	createErr error
	getErr    error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{byID: make(map[uuid.UUID]domain.Payment)}
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	r.byID[payment.ID] = payment
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakePaymentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forUpdateCalls++
	return r.get(id)
}

func (r *fakePaymentRepo) get(id uuid.UUID) (*domain.Payment, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	payment, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &payment, nil
}

func (r *fakePaymentRepo) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Payment
	for _, payment := range r.byID {
		if payment.UserID == userID {
			result = append(result, payment)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.After(result[j].PaidAt)
	})
	return result, nil
}

func (r *fakePaymentRepo) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.byID[id]
	if !ok || payment.Status != domain.PaymentStatusPaid {
		return repository.ErrNotFound
	}
	payment.Status = domain.PaymentStatusCancelled
	payment.CancelledAt = &cancelledAt
	payment.RefundReason = reason
	r.byID[id] = payment
	return nil
}

// fakeTxManager реализует repository.TxManager для тестов
type fakeTxManager struct {
	mu       sync.Mutex
	calls    int
	beginErr error
}

func (m *fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	err := m.beginErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

// fakeLockManager реализует lock.Manager для тестов. Держит занятые
// ключи в памяти, так что взаимное исключение в нем настоящее.
type fakeLockManager struct {
	mu       sync.Mutex
	held     map[string]string
	acquired []string
	released []string

	busy       bool
	acquireErr error
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]string)}
}

func (m *fakeLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.AcquireWithRetry(ctx, key, ttl, 0)
}

func (m *fakeLockManager) AcquireWithRetry(ctx context.Context, key string, ttl, maxWait time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return "", m.acquireErr
	}
	if m.busy {
		return "", lock.ErrBusy
	}
	if _, ok := m.held[key]; ok {
		return "", lock.ErrBusy
	}
	token := fmt.Sprintf("token-%d", len(m.acquired)+1)
	m.held[key] = token
	m.acquired = append(m.acquired, key)
	return token, nil
}

func (m *fakeLockManager) Release(ctx context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] != token {
		return false, nil
	}
	delete(m.held, key)
	m.released = append(m.released, key)
	return true, nil
}

func (m *fakeLockManager) heldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// dirtyMark зафиксированная пометка пересчета счетчика
type dirtyMark struct {
	kind domain.OfferingKind
	id   uuid.UUID
}

// fakeTracker реализует counts.Tracker для тестов
type fakeTracker struct {
	mu    sync.Mutex
	marks []dirtyMark
}

func (t *fakeTracker) MarkDirty(ctx context.Context, kind domain.OfferingKind, offeringID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks = append(t.marks, dirtyMark{kind, offeringID})
}

func (t *fakeTracker) markCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marks)
}

// publishedEvent зафиксированная публикация события
type publishedEvent struct {
	topic string
	key   string
	event any
}

// fakeProducer реализует kafka.Producer для тестов
type fakeProducer struct {
	mu         sync.Mutex
	events     []publishedEvent
	publishErr error
	closed     bool
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.events = append(p.events, publishedEvent{topic, key, event})
	return nil
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// waitPublished дожидается фоновой публикации нужного числа событий
func (p *fakeProducer) waitPublished(t *testing.T, want int) []publishedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		events := append([]publishedEvent(nil), p.events...)
		p.mu.Unlock()
		if len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("waitPublished: expected %d events, timed out", want)
	return nil
}

// fakeMetrics реализует metrics.EnrollmentMetrics для тестов
type fakeMetrics struct {
	mu            sync.Mutex
	applies       int
	failures      map[string]int
	completions   int
	cancellations int
	lockWaits     int
	lockBusy      int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{failures: make(map[string]int)}
}

func (m *fakeMetrics) RecordApply(kind, method string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies++
}

func (m *fakeMetrics) RecordApplyFailure(kind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *fakeMetrics) RecordCompletion(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions++
}

func (m *fakeMetrics) RecordCancellation(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations++
}

func (m *fakeMetrics) RecordLockWait(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockWaits++
}

func (m *fakeMetrics) RecordLockBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockBusy++
}

func (m *fakeMetrics) failureCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[reason]
}

// Фиксированный момент времени для детерминированных тестов
var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// testEnv собирает сервис регистраций на фейковых зависимостях
type testEnv struct {
	offerings     *fakeOfferingRepo
	registrations *fakeRegistrationRepo
	payments      *fakePaymentRepo
	tx            *fakeTxManager
	locks         *fakeLockManager
	tracker       *fakeTracker
	producer      *fakeProducer
	metrics       *fakeMetrics
	service       *EnrollmentService
}

func newTestEnv(offerings ...domain.Offering) *testEnv {
	env := &testEnv{
		offerings:     newFakeOfferingRepo(offerings...),
		registrations: newFakeRegistrationRepo(),
		payments:      newFakePaymentRepo(),
		tx:            &fakeTxManager{},
		locks:         newFakeLockManager(),
		tracker:       &fakeTracker{},
		producer:      &fakeProducer{},
		metrics:       newFakeMetrics(),
	}
	env.service = NewEnrollmentService(EnrollmentDeps{
		Offerings:     env.offerings,
		Registrations: env.registrations,
		Payments:      env.payments,
		Tx:            env.tx,
		Locks:         env.locks,
		Tracker:       env.tracker,
		Producer:      env.producer,
		Metrics:       env.metrics,
		Log:           logger.NewNop(),
	})
	env.service.now = func() time.Time { return testNow }
	return env
}

// seed создает активную пару регистрация-платеж в обход сервиса
func (env *testEnv) seed(t *testing.T, userID string, offering domain.Offering) (domain.Registration, domain.Payment) {
	t.Helper()
	registration := domain.Registration{
		ID:           uuid.New(),
		UserID:       userID,
		OfferingKind: offering.Kind,
		OfferingID:   offering.ID,
		Status:       domain.RegistrationStatusActive,
		CreatedAt:    testNow.Add(-time.Hour),
	}
	payment := domain.Payment{
		ID:             uuid.New(),
		UserID:         userID,
		RegistrationID: registration.ID,
		TargetKind:     offering.Kind,
		TargetID:       offering.ID,
		Amount:         offering.Price,
		Method:         domain.PaymentMethodKakaoPay,
		Status:         domain.PaymentStatusPaid,
		PaidAt:         testNow.Add(-time.Hour),
	}
	if err := env.registrations.Create(context.Background(), registration); err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	if err := env.payments.Create(context.Background(), payment); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return registration, payment
}

// testOffering создает предложение с открытым окном регистрации
func testOffering(kind domain.OfferingKind, price string) domain.Offering {
	return domain.Offering{
		ID:      uuid.New(),
		Kind:    kind,
		Title:   "Go Fundamentals",
		Price:   decimal.RequireFromString(price),
		StartAt: testNow.Add(-24 * time.Hour),
		EndAt:   testNow.Add(24 * time.Hour),
	}
}

// applyInput запрос на регистрацию с суммой, равной цене предложения
func applyInput(userID string, offering domain.Offering) ApplyInput {
	return ApplyInput{
		UserID:       userID,
		OfferingKind: offering.Kind,
		OfferingID:   offering.ID,
		Amount:       offering.Price,
		Method:       domain.PaymentMethodKakaoPay,
	}
}
