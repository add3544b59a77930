package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketlab/concert-reservation/internal/event"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// In-memory fakes implementing the service-side store interfaces. They
// reproduce the repositories' contracts (sentinel errors, conditional
// updates, balance floor) behind a single mutex so concurrency tests
// exercise the services' locking, not the fakes'.

type fakeTokenStore struct {
	mu      sync.Mutex
	byValue map[string]*model.QueueToken
	byUser  map[string]string
	waiting []string // token values in issuance order
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		byValue: make(map[string]*model.QueueToken),
		byUser:  make(map[string]string),
	}
}

func (f *fakeTokenStore) Save(ctx context.Context, t *model.QueueToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.byValue[t.TokenValue] = &cp
	f.byUser[t.UserID] = t.TokenValue
	if t.Status == model.TokenWaiting {
		f.waiting = append(f.waiting, t.TokenValue)
	}
	return nil
}

func (f *fakeTokenStore) FindByTokenValue(ctx context.Context, tokenValue string) (*model.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byValue[tokenValue]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokenStore) FindByUserID(ctx context.Context, userID string) (*model.QueueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	t, ok := f.byValue[value]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokenStore) CountWaiting(ctx context.Context) (int64, error) {
	return f.countStatus(model.TokenWaiting), nil
}

func (f *fakeTokenStore) CountActive(ctx context.Context) (int64, error) {
	return f.countStatus(model.TokenActive), nil
}

func (f *fakeTokenStore) countStatus(status string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.byValue {
		if t.Status == status {
			n++
		}
	}
	return n
}

func (f *fakeTokenStore) ActivateNext(ctx context.Context, n int64, activeTTL time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var promoted int64
	remaining := f.waiting[:0]
	for _, value := range f.waiting {
		t, ok := f.byValue[value]
		if !ok || t.Status != model.TokenWaiting {
			continue
		}
		if promoted < n {
			t.Status = model.TokenActive
			t.ExpiresAt = time.Now().Add(activeTTL)
			promoted++
			continue
		}
		remaining = append(remaining, value)
	}
	f.waiting = remaining
	return promoted, nil
}

func (f *fakeTokenStore) ExpireWaitingIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.byValue {
		if t.Status == model.TokenWaiting && t.IssuedAt.Before(cutoff) {
			t.Status = model.TokenExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenStore) ExpireActiveDueBefore(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.byValue {
		if t.Status == model.TokenActive && t.ExpiresAt.Before(now) {
			t.Status = model.TokenExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenStore) MarkExpired(ctx context.Context, tokenValue string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byValue[tokenValue]; ok {
		t.Status = model.TokenExpired
	}
	return nil
}

type fakeReservationStore struct {
	mu   sync.Mutex
	byID map[string]*model.Reservation
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{byID: make(map[string]*model.Reservation)}
}

func (f *fakeReservationStore) CreateHold(ctx context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.SeatID == r.SeatID &&
			(existing.Status == model.ReservationHeld || existing.Status == model.ReservationConfirmed) {
			return repository.ErrConflict
		}
	}
	cp := *r
	f.byID[r.ReservationID] = &cp
	return nil
}

func (f *fakeReservationStore) FindByID(ctx context.Context, reservationID string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservationStore) ExpireIfHeld(ctx context.Context, reservationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[reservationID]
	if !ok || r.Status != model.ReservationHeld {
		return false, nil
	}
	r.Status = model.ReservationExpired
	return true, nil
}

func (f *fakeReservationStore) FindExpiredHeld(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.byID {
		if r.Status == model.ReservationHeld && r.ExpiresAt.Before(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// confirmIfHeld mirrors the conditional status update the payment
// transaction performs.
func (f *fakeReservationStore) confirmIfHeld(reservationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[reservationID]
	if !ok || r.Status != model.ReservationHeld {
		return false
	}
	r.Status = model.ReservationConfirmed
	return true
}

func (f *fakeReservationStore) status(reservationID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byID[reservationID]; ok {
		return r.Status
	}
	return ""
}

type fakeSeatFinder struct {
	seats map[string]*model.Seat // "scheduleID/seatNo"
}

func newFakeSeatFinder(seats ...*model.Seat) *fakeSeatFinder {
	f := &fakeSeatFinder{seats: make(map[string]*model.Seat)}
	for _, s := range seats {
		f.seats[seatKey(s.ScheduleID, s.SeatNo)] = s
	}
	return f
}

func seatKey(scheduleID string, seatNo int) string {
	return scheduleID + "/" + strconv.Itoa(seatNo)
}

func (f *fakeSeatFinder) FindSeatByScheduleAndNo(ctx context.Context, scheduleID string, seatNo int) (*model.Seat, error) {
	s, ok := f.seats[seatKey(scheduleID, seatNo)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

type fakePointStore struct {
	mu       sync.Mutex
	balances map[string]int64
	ledger   []*model.PointTransaction
}

func newFakePointStore() *fakePointStore {
	return &fakePointStore{balances: make(map[string]int64)}
}

func (f *fakePointStore) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	f.appendTx(userID, model.PointTxCharge, amount, nil)
	return f.balances[userID], nil
}

func (f *fakePointStore) Debit(ctx context.Context, userID string, amount int64, refPaymentID *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debitLocked(userID, amount, refPaymentID)
}

func (f *fakePointStore) debitLocked(userID string, amount int64, refPaymentID *string) (int64, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if balance < amount {
		return 0, repository.ErrInsufficientFunds
	}
	f.balances[userID] = balance - amount
	f.appendTx(userID, model.PointTxPayment, amount, refPaymentID)
	return f.balances[userID], nil
}

func (f *fakePointStore) appendTx(userID, txType string, amount int64, ref *string) {
	f.ledger = append(f.ledger, &model.PointTransaction{
		TxID:         uuid.NewString(),
		UserID:       userID,
		TxType:       txType,
		Amount:       amount,
		BalanceAfter: f.balances[userID],
		RefPaymentID: ref,
		CreatedAt:    time.Now(),
	})
}

func (f *fakePointStore) GetBalance(ctx context.Context, userID string) (*model.PointBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.PointBalance{UserID: userID, Balance: balance, UpdatedAt: time.Now()}, nil
}

func (f *fakePointStore) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.PointTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PointTransaction
	for i := len(f.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if f.ledger[i].UserID == userID {
			out = append(out, f.ledger[i])
		}
	}
	return out, nil
}

func (f *fakePointStore) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

// fakePaymentStore reproduces the all-or-nothing settlement
// transaction: payment insert, point debit and conditional confirm
// either all apply or none do.
type fakePaymentStore struct {
	mu           sync.Mutex
	reservations *fakeReservationStore
	points       *fakePointStore
	byRes        map[string]*model.Payment
}

func newFakePaymentStore(reservations *fakeReservationStore, points *fakePointStore) *fakePaymentStore {
	return &fakePaymentStore{
		reservations: reservations,
		points:       points,
		byRes:        make(map[string]*model.Payment),
	}
}

func (f *fakePaymentStore) Confirm(ctx context.Context, p repository.ConfirmParams) (*model.Payment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byRes[p.ReservationID]; exists {
		return nil, 0, repository.ErrInvalidState
	}
	if f.reservations.status(p.ReservationID) != model.ReservationHeld {
		return nil, 0, repository.ErrInvalidState
	}

	f.points.mu.Lock()
	paymentID := uuid.NewString()
	balance, err := f.points.debitLocked(p.UserID, p.Amount, &paymentID)
	f.points.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	if !f.reservations.confirmIfHeld(p.ReservationID) {
		// Undo the debit; a real transaction would roll back.
		f.points.mu.Lock()
		f.points.balances[p.UserID] += p.Amount
		f.points.mu.Unlock()
		return nil, 0, repository.ErrInvalidState
	}

	now := time.Now()
	payment := &model.Payment{
		PaymentID:     paymentID,
		ReservationID: p.ReservationID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Status:        model.PaymentSuccess,
		PaidAt:        now,
		CreatedAt:     now,
	}
	f.byRes[p.ReservationID] = payment
	cp := *payment
	return &cp, balance, nil
}

func (f *fakePaymentStore) FindByReservationID(ctx context.Context, reservationID string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byRes[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byRes)
}

type fakeExpiryScheduler struct {
	mu       sync.Mutex
	payloads []event.ReservationExpirationPayload
}

func (f *fakeExpiryScheduler) ScheduleReservationExpiration(ctx context.Context, payload event.ReservationExpirationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeExpiryScheduler) scheduled() []event.ReservationExpirationPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.ReservationExpirationPayload(nil), f.payloads...)
}

type fakeCompletedPublisher struct {
	mu       sync.Mutex
	payloads []event.PaymentCompletedPayload
}

func (f *fakeCompletedPublisher) PublishPaymentCompleted(ctx context.Context, payload event.PaymentCompletedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeCompletedPublisher) published() []event.PaymentCompletedPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.PaymentCompletedPayload(nil), f.payloads...)
}
