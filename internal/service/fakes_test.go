package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/payment"

	"github.com/shopspring/decimal"
)

// memLedger is an in-memory LedgerStore with the same atomicity guarantees
// the Postgres store provides: CAS status transitions, a uniqueness guard on
// commission records, and a serialized withdrawal reserve path.
type memLedger struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{byID: make(map[int64]*domain.Transaction)}
}

func (m *memLedger) Append(ctx context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.append(t)
}

func (m *memLedger) append(t *domain.Transaction) error {
	if !t.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	// manual credits carry no purchase correlation and skip the dedupe guard
	if cm, ok := t.Meta.(*domain.CommissionMeta); t.Type == domain.TypeCommission && ok && cm.OriginalTransactionID > 0 {
		for _, existing := range m.byID {
			if existing.Type != domain.TypeCommission || existing.UserID != t.UserID {
				continue
			}
			if em, ok := existing.Meta.(*domain.CommissionMeta); ok && em.OriginalTransactionID == cm.OriginalTransactionID {
				return domain.ErrDuplicate
			}
		}
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memLedger) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memLedger) GetByProviderRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.ProviderRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLedger) GetByUser(ctx context.Context, userID int64, f domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range m.byID {
		if t.UserID != userID || !matches(t, f.Types, f.Statuses, f.From, f.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memLedger) ListByTypeAndStatus(ctx context.Context, typ domain.TransactionType, status domain.TransactionStatus, limit int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range m.byID {
		if t.Type == typ && t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLedger) TransitionStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, processedAt time.Time, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != from {
		return fmt.Errorf("transaction %d is %s, not %s: %w", id, t.Status, from, domain.ErrInvalidState)
	}
	t.Status = to
	if t.ProcessedAt == nil {
		at := processedAt
		t.ProcessedAt = &at
	}
	if note, ok := patch["admin_note"].(string); ok {
		applyNote(t, note)
	}
	return nil
}

func (m *memLedger) Annotate(ctx context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	applyNote(t, note)
	return nil
}

func (m *memLedger) SetProviderRef(ctx context.Context, id int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.Status != domain.StatusPending {
		return domain.ErrInvalidState
	}
	t.ProviderRef = ref
	return nil
}

func (m *memLedger) SumAmounts(ctx context.Context, userID int64, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sum(userID, types, statuses, from, to), nil
}

func (m *memLedger) sum(userID int64, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range m.byID {
		if t.UserID == userID && matches(t, types, statuses, from, to) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func (m *memLedger) ReserveWithdrawal(ctx context.Context, t *domain.Transaction, limits domain.WithdrawalLimits, loc *time.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	completed := []domain.TransactionStatus{domain.StatusCompleted}
	credits := m.sum(t.UserID, []domain.TransactionType{domain.TypeCommission, domain.TypeRefund}, completed, nil, nil)
	debits := m.sum(t.UserID, []domain.TransactionType{domain.TypePayment, domain.TypeWithdrawal}, completed, nil, nil)

	now := time.Now()
	withdrawals := []domain.TransactionType{domain.TypeWithdrawal}
	reserving := []domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted}
	dayFrom, dayTo := domain.DayWindow(now, loc)
	monthFrom, monthTo := domain.MonthWindow(now, loc)

	err := domain.EvaluateWithdrawal(t.Amount, credits.Sub(debits),
		m.sum(t.UserID, withdrawals, reserving, &dayFrom, &dayTo),
		m.sum(t.UserID, withdrawals, reserving, &monthFrom, &monthTo), limits)
	if err != nil {
		return err
	}
	return m.append(t)
}

func matches(t *domain.Transaction, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) bool {
	if len(types) > 0 {
		found := false
		for _, typ := range types {
			if t.Type == typ {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if len(statuses) > 0 {
		found := false
		for _, s := range statuses {
			if t.Status == s {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if from != nil && t.CreatedAt.Before(*from) {
		return false
	}
	if to != nil && !t.CreatedAt.Before(*to) {
		return false
	}
	return true
}

func applyNote(t *domain.Transaction, note string) {
	switch m := t.Meta.(type) {
	case *domain.PaymentMeta:
		m.AdminNote = note
	case *domain.WithdrawalMeta:
		m.AdminNote = note
	case *domain.CommissionMeta:
		m.AdminNote = note
	case *domain.RefundMeta:
		m.AdminNote = note
	}
}

// memDirectory is an in-memory ReferralDirectory.
type memDirectory struct {
	referrers map[int64]*domain.User // referred user -> referrer
	verified  map[int64]int          // referrer -> verified referral count
}

func (d *memDirectory) FindReferrer(ctx context.Context, userID int64) (*domain.User, error) {
	u, ok := d.referrers[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (d *memDirectory) CountVerifiedReferrals(ctx context.Context, userID int64) (int, error) {
	return d.verified[userID], nil
}

// memModules is an in-memory ModuleCatalog + ModuleActivator.
type memModules struct {
	mu          sync.Mutex
	modules     map[int64]*domain.BotModule
	activations map[int64]*domain.ModuleActivation
	nextID      int64
	activateErr error
}

func newMemModules() *memModules {
	return &memModules{
		modules:     make(map[int64]*domain.BotModule),
		activations: make(map[int64]*domain.ModuleActivation),
	}
}

func (m *memModules) GetModule(ctx context.Context, id int64) (*domain.BotModule, error) {
	mod, ok := m.modules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return mod, nil
}

func (m *memModules) ActiveActivation(ctx context.Context, botID, moduleID int64) (*domain.ModuleActivation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.activations {
		if a.BotID == botID && a.ModuleID == moduleID && a.Active {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memModules) Activate(ctx context.Context, botID, moduleID int64, markupPct decimal.Decimal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activateErr != nil {
		return 0, m.activateErr
	}
	for _, a := range m.activations {
		if a.BotID == botID && a.ModuleID == moduleID && a.Active {
			return 0, domain.ErrAlreadyActivated
		}
	}
	m.nextID++
	m.activations[m.nextID] = &domain.ModuleActivation{
		ID: m.nextID, BotID: botID, ModuleID: moduleID,
		MarkupPercent: markupPct, Active: true, ActivatedAt: time.Now(),
	}
	return m.nextID, nil
}

func (m *memModules) Deactivate(ctx context.Context, activationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activations[activationID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Active = false
	return nil
}

func (m *memModules) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.activations {
		if a.Active {
			n++
		}
	}
	return n
}

// stubProvider records intent/refund calls.
type stubProvider struct {
	mu          sync.Mutex
	intents     int
	refunds     []string
	intentErr   error
	refundErr   error
	lastRefund  decimal.Decimal
}

func (p *stubProvider) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	p.intents++
	return &payment.Intent{
		ProviderRef:  fmt.Sprintf("pi_%d", p.intents),
		ClientSecret: "secret",
	}, nil
}

func (p *stubProvider) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds = append(p.refunds, providerRef)
	p.lastRefund = amount
	return fmt.Sprintf("re_%d", len(p.refunds)), nil
}

// recordingNotifier counts delivered notifications.
type recordingNotifier struct {
	mu          sync.Mutex
	payments    int
	failures    int
	withdrawals int
	commissions int
}

func (n *recordingNotifier) PaymentCompleted(int64, decimal.Decimal, string, string) {
	n.mu.Lock()
	n.payments++
	n.mu.Unlock()
}

func (n *recordingNotifier) PaymentFailed(int64, decimal.Decimal, string) {
	n.mu.Lock()
	n.failures++
	n.mu.Unlock()
}

func (n *recordingNotifier) WithdrawalProcessed(int64, decimal.Decimal, string, bool) {
	n.mu.Lock()
	n.withdrawals++
	n.mu.Unlock()
}

func (n *recordingNotifier) CommissionEarned(int64, decimal.Decimal, string, string) {
	n.mu.Lock()
	n.commissions++
	n.mu.Unlock()
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var seedSeq atomic.Int64

// seedCompleted appends a completed transaction directly, as manual admin
// adjustments do.
func seedCompleted(l *memLedger, userID int64, typ domain.TransactionType, amount string) *domain.Transaction {
	now := time.Now()
	var meta domain.Meta
	switch typ {
	case domain.TypePayment:
		meta = &domain.PaymentMeta{}
	case domain.TypeWithdrawal:
		meta = &domain.WithdrawalMeta{}
	case domain.TypeCommission:
		meta = &domain.CommissionMeta{OriginalTransactionID: -seedSeq.Add(1)}
	case domain.TypeRefund:
		meta = &domain.RefundMeta{}
	}
	t := &domain.Transaction{
		UserID:      userID,
		Type:        typ,
		Amount:      d(amount),
		Currency:    "USD",
		Status:      domain.StatusCompleted,
		ProcessedAt: &now,
		Meta:        meta,
	}
	if err := l.Append(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}

var errBoom = errors.New("boom")
